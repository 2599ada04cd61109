package hackerrank

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

	RESTEndpoint string
}

func New(deps platforms.Deps) *Adapter {
	return &Adapter{deps: deps, RESTEndpoint: HACKERRANK_REST_ENDPOINT}
}

func (a *Adapter) Platform() stats.Platform { return stats.HackerRank }

func (a *Adapter) Username(profileURL string) (string, error) {
	return platforms.ExtractUsername(stats.HackerRank, profileURL)
}

func (a *Adapter) Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error) {
	username, err := a.Username(profileURL)
	if err != nil {
		return nil, err
	}
	log := a.deps.Logger().WithField("username", username)
	routes := a.deps.Routes(stats.HackerRank)
	escaped := url.PathEscape(username)

	res, err := a.deps.Fetcher.Get(ctx, retrieval.Request{
		URL:      a.RESTEndpoint + "/hackers/" + escaped + "/badges",
		Validate: validateBadges,
	}, routes)
	if err != nil {
		return platforms.Fallback(log, stats.HackerRank, username, err), nil
	}
	s := &stats.HackerRankStats{}
	s.Badges, s.ProblemsSolved, s.Stars = sumBadges(res.BodyString)

	res, err = a.deps.Fetcher.Get(ctx, retrieval.Request{
		URL:      a.RESTEndpoint + "/contests/master/hackers/" + escaped + "/profile",
		Validate: validateProfile,
	}, routes)
	if err == nil {
		s.Country = gjson.Get(res.BodyString, "model.country").String()
	} else {
		log.Debugf("hackerrank profile unavailable: %v", err)
	}

	platforms.Live(&s.Envelope, stats.HackerRank, username)
	return s, nil
}
