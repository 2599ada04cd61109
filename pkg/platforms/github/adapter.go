package github

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/whttp"
)

type Adapter struct {
	deps platforms.Deps

	APIEndpoint string
}

func New(deps platforms.Deps) *Adapter {
	return &Adapter{deps: deps, APIEndpoint: GITHUB_API_ENDPOINT}
}

func (a *Adapter) Platform() stats.Platform { return stats.GitHub }

func (a *Adapter) Username(profileURL string) (string, error) {
	return platforms.ExtractUsername(stats.GitHub, profileURL)
}

func (a *Adapter) request(target string, validate func(*whttp.WHTTPRes) error) retrieval.Request {
	req := retrieval.Request{
		URL:      target,
		Headers:  []whttp.WHTTPHeader{{Name: "Accept", Value: "application/vnd.github+json"}},
		Validate: validate,
	}
	if a.deps.GitHubToken != "" {
		req.DirectHeaders = []whttp.WHTTPHeader{{Name: "Authorization", Value: "Bearer " + a.deps.GitHubToken}}
	}
	return req
}

// Fetch reads the user record, then walks the repository listing to total
// stars and forks. A failed page ends the walk with the totals so far.
func (a *Adapter) Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error) {
	username, err := a.Username(profileURL)
	if err != nil {
		return nil, err
	}
	log := a.deps.Logger().WithField("username", username)
	routes := a.deps.Routes(stats.GitHub)
	base := a.APIEndpoint + "/users/" + url.PathEscape(username)

	res, err := a.deps.Fetcher.Get(ctx, a.request(base, validateUser), routes)
	if err != nil {
		return platforms.Fallback(log, stats.GitHub, username, err), nil
	}
	u := parseUser(res.BodyString)
	s := &stats.GitHubStats{
		Repositories: u.repos,
		Followers:    u.followers,
		Following:    u.following,
		CreatedAt:    u.createdAt,
	}

	for page := 1; page <= maxRepoPages; page++ {
		target := fmt.Sprintf("%s/repos?per_page=%d&page=%d", base, reposPerPage, page)
		res, err := a.deps.Fetcher.Get(ctx, a.request(target, validateRepos), routes)
		if err != nil {
			log.Debugf("github repos page %d failed: %v", page, err)
			break
		}
		n, stars, forks := sumRepos(res.BodyString)
		if n == 0 {
			break
		}
		s.TotalStars += stars
		s.TotalForks += forks
	}

	platforms.Live(&s.Envelope, stats.GitHub, username)
	return s, nil
}
