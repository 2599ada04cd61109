package leetcode

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/whttp"
)

type Adapter struct {
	deps platforms.Deps

	StatsEndpoint   string
	GraphQLEndpoint string
}

func New(deps platforms.Deps) *Adapter {
	return &Adapter{
		deps:            deps,
		StatsEndpoint:   LEETCODE_STATS_ENDPOINT,
		GraphQLEndpoint: LEETCODE_GRAPHQL_ENDPOINT,
	}
}

func (a *Adapter) Platform() stats.Platform { return stats.LeetCode }

func (a *Adapter) Username(profileURL string) (string, error) {
	return platforms.ExtractUsername(stats.LeetCode, profileURL)
}

// Fetch tries the community stats API first and the official GraphQL
// endpoint second.
func (a *Adapter) Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error) {
	username, err := a.Username(profileURL)
	if err != nil {
		return nil, err
	}
	log := a.deps.Logger()
	routes := a.deps.Routes(stats.LeetCode)

	res, err := a.deps.Fetcher.Get(ctx, retrieval.Request{
		URL:      a.StatsEndpoint + url.PathEscape(username),
		Validate: validateStatsAPI,
	}, routes)
	if err == nil {
		s := parseStatsAPI(res.BodyString, time.Now())
		platforms.Live(&s.Envelope, stats.LeetCode, username)
		return s, nil
	}
	log.WithField("username", username).Debugf("leetcode stats api failed, trying graphql: %v", err)

	res, err = a.deps.Fetcher.Get(ctx, retrieval.Request{
		Method: http.MethodPost,
		URL:    a.GraphQLEndpoint,
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Referer", Value: "https://leetcode.com/u/" + username + "/"},
		},
		Body:     graphQLBody(username),
		Validate: validateGraphQL,
	}, routes)
	if err == nil {
		s := parseGraphQL(res.BodyString, time.Now())
		platforms.Live(&s.Envelope, stats.LeetCode, username)
		return s, nil
	}

	return platforms.Fallback(log, stats.LeetCode, username, err), nil
}
