package atcoder

import (
	"context"
	"net/url"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/tidwall/gjson"
)

type Adapter struct {
	deps platforms.Deps

	UsersEndpoint  string
	ACRankEndpoint string
}

func New(deps platforms.Deps) *Adapter {
	return &Adapter{
		deps:           deps,
		UsersEndpoint:  ATCODER_USERS_ENDPOINT,
		ACRankEndpoint: KENKOOOO_AC_RANK_ENDPOINT,
	}
}

func (a *Adapter) Platform() stats.Platform { return stats.AtCoder }

func (a *Adapter) Username(profileURL string) (string, error) {
	return platforms.ExtractUsername(stats.AtCoder, profileURL)
}

func (a *Adapter) Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error) {
	username, err := a.Username(profileURL)
	if err != nil {
		return nil, err
	}
	log := a.deps.Logger().WithField("username", username)
	routes := a.deps.Routes(stats.AtCoder)
	profile := a.UsersEndpoint + url.PathEscape(username)

	var summary ratingSummary
	res, err := a.deps.Fetcher.Get(ctx, retrieval.Request{URL: profile + "/history/json", Validate: validateHistory}, routes)
	if err == nil {
		summary = parseHistory(res.BodyString)
	} else {
		log.Debugf("atcoder history failed, trying profile page: %v", err)
		res, err = a.deps.Fetcher.Get(ctx, retrieval.Request{URL: profile, Validate: validateProfile}, routes)
		if err == nil {
			summary, err = parseProfile(res.BodyString)
		}
		if err != nil {
			return platforms.Fallback(log, stats.AtCoder, username, err), nil
		}
	}

	s := &stats.AtCoderStats{
		Rating:        summary.rating,
		HighestRating: summary.highest,
		Rank:          stats.AtCoderRank(summary.rating),
		RatedMatches:  summary.ratedMatches,
	}

	res, err = a.deps.Fetcher.Get(ctx, retrieval.Request{
		URL:      a.ACRankEndpoint + "?" + url.Values{"user": {username}}.Encode(),
		Validate: validateACRank,
	}, routes)
	if err == nil {
		s.ProblemsSolved = int(gjson.Get(res.BodyString, "count").Int())
	} else {
		log.Debugf("atcoder solved count unavailable: %v", err)
	}

	platforms.Live(&s.Envelope, stats.AtCoder, username)
	return s, nil
}
