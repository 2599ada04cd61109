package codeforces

import (
	"errors"
	"strconv"

	"github.com/sw33tLie/statscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const CODEFORCES_API_ENDPOINT = "https://codeforces.com/api/"

func validate(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) {
		return errors.New("codeforces api: response is not JSON")
	}
	if st := gjson.Get(res.BodyString, "status").String(); st != "OK" {
		if c := gjson.Get(res.BodyString, "comment").String(); c != "" {
			return errors.New("codeforces api: " + c)
		}
		return errors.New("codeforces api: status " + strconv.Quote(st))
	}
	return nil
}

type userInfo struct {
	rating        int
	maxRating     int
	contribution  int
	friendOfCount int
}

func parseUserInfo(body string) (userInfo, error) {
	u := gjson.Get(body, "result.0")
	if !u.Exists() {
		return userInfo{}, errors.New("codeforces api: empty user.info result")
	}
	return userInfo{
		rating:        int(u.Get("rating").Int()),
		maxRating:     int(u.Get("maxRating").Int()),
		contribution:  int(u.Get("contribution").Int()),
		friendOfCount: int(u.Get("friendOfCount").Int()),
	}, nil
}

// countSolved counts distinct problems with at least one accepted submission.
func countSolved(body string) int {
	seen := map[string]bool{}
	gjson.Get(body, "result").ForEach(func(_, sub gjson.Result) bool {
		if sub.Get("verdict").String() != "OK" {
			return true
		}
		contest := sub.Get("problem.contestId").String()
		if contest == "" {
			contest = sub.Get("contestId").String()
		}
		if contest == "" {
			contest = sub.Get("problem.problemsetName").String()
		}
		seen[contest+"/"+sub.Get("problem.index").String()] = true
		return true
	})
	return len(seen)
}

func countContests(body string) int {
	return int(gjson.Get(body, "result.#").Int())
}
