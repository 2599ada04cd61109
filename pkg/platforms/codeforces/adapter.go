package codeforces

import (
	"context"
	"net/url"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
)

type Adapter struct {
	deps platforms.Deps

	APIEndpoint string
}

func New(deps platforms.Deps) *Adapter {
	return &Adapter{deps: deps, APIEndpoint: CODEFORCES_API_ENDPOINT}
}

func (a *Adapter) Platform() stats.Platform { return stats.Codeforces }

func (a *Adapter) Username(profileURL string) (string, error) {
	return platforms.ExtractUsername(stats.Codeforces, profileURL)
}

func (a *Adapter) call(ctx context.Context, method string, q url.Values) (string, error) {
	res, err := a.deps.Fetcher.Get(ctx, retrieval.Request{
		URL:      a.APIEndpoint + method + "?" + q.Encode(),
		Validate: validate,
	}, a.deps.Routes(stats.Codeforces))
	if err != nil {
		return "", err
	}
	return res.BodyString, nil
}

// Fetch requires user.info. The submission and rating histories only refine
// the record, so their failures are logged and estimated around.
func (a *Adapter) Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error) {
	handle, err := a.Username(profileURL)
	if err != nil {
		return nil, err
	}
	log := a.deps.Logger().WithField("username", handle)

	body, err := a.call(ctx, "user.info", url.Values{"handles": {handle}})
	if err != nil {
		return platforms.Fallback(log, stats.Codeforces, handle, err), nil
	}
	info, err := parseUserInfo(body)
	if err != nil {
		return platforms.Fallback(log, stats.Codeforces, handle, err), nil
	}

	s := &stats.CodeforcesStats{
		Rating:        info.rating,
		MaxRating:     info.maxRating,
		Rank:          stats.CodeforcesRank(info.rating),
		MaxRank:       stats.CodeforcesRank(info.maxRating),
		Contribution:  info.contribution,
		FriendOfCount: info.friendOfCount,
	}

	if body, err := a.call(ctx, "user.status", url.Values{"handle": {handle}}); err == nil {
		s.ProblemsSolved = countSolved(body)
	} else {
		log.Debugf("codeforces user.status failed, estimating solved count: %v", err)
		s.ProblemsSolved = max(50, info.rating/10)
	}

	if body, err := a.call(ctx, "user.rating", url.Values{"handle": {handle}}); err == nil {
		s.ContestsAttended = countContests(body)
	} else {
		log.Debugf("codeforces user.rating failed: %v", err)
	}

	platforms.Live(&s.Envelope, stats.Codeforces, handle)
	return s, nil
}
