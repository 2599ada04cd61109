package github

import (
	"errors"
	"time"

	"github.com/sw33tLie/statscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	GITHUB_API_ENDPOINT = "https://api.github.com"

	reposPerPage = 100
	maxRepoPages = 5
)

func validateUser(res *whttp.WHTTPRes) error {
	if gjson.Get(res.BodyString, "login").String() == "" {
		return errors.New("github api: missing login in user payload")
	}
	return nil
}

func validateRepos(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) || !gjson.Parse(res.BodyString).IsArray() {
		return errors.New("github api: expected a JSON array of repositories")
	}
	return nil
}

type user struct {
	repos     int
	followers int
	following int
	createdAt time.Time
}

func parseUser(body string) user {
	created, _ := time.Parse(time.RFC3339, gjson.Get(body, "created_at").String())
	return user{
		repos:     int(gjson.Get(body, "public_repos").Int()),
		followers: int(gjson.Get(body, "followers").Int()),
		following: int(gjson.Get(body, "following").Int()),
		createdAt: created,
	}
}

// sumRepos returns the page's repository count and its star and fork totals.
func sumRepos(body string) (n, stars, forks int) {
	gjson.Parse(body).ForEach(func(_, r gjson.Result) bool {
		n++
		stars += int(r.Get("stargazers_count").Int())
		forks += int(r.Get("forks_count").Int())
		return true
	})
	return n, stars, forks
}
