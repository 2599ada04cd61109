package hackerrank

import (
	"errors"

	"github.com/sw33tLie/statscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const HACKERRANK_REST_ENDPOINT = "https://www.hackerrank.com/rest"

func validateBadges(res *whttp.WHTTPRes) error {
	if !gjson.Get(res.BodyString, "models").IsArray() {
		return errors.New("hackerrank badges: missing models")
	}
	return nil
}

func validateProfile(res *whttp.WHTTPRes) error {
	if !gjson.Get(res.BodyString, "model").IsObject() {
		return errors.New("hackerrank profile: missing model")
	}
	return nil
}

// sumBadges totals solved challenges and stars across all badges.
func sumBadges(body string) (badges, solved, stars int) {
	gjson.Get(body, "models").ForEach(func(_, b gjson.Result) bool {
		badges++
		solved += int(b.Get("solved").Int())
		stars += int(b.Get("stars").Int())
		return true
	})
	return badges, solved, stars
}
