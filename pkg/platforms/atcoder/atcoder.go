package atcoder

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sw33tLie/statscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	ATCODER_USERS_ENDPOINT    = "https://atcoder.jp/users/"
	KENKOOOO_AC_RANK_ENDPOINT = "https://kenkoooo.com/atcoder/atcoder-api/v3/user/ac_rank"
)

var leadingInt = regexp.MustCompile(`\d+`)

type ratingSummary struct {
	rating       int
	highest      int
	ratedMatches int
}

func validateHistory(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) || !gjson.Parse(res.BodyString).IsArray() {
		return errors.New("atcoder history: expected a JSON array")
	}
	return nil
}

// parseHistory derives the current and highest rating from rated contests.
func parseHistory(body string) ratingSummary {
	var r ratingSummary
	gjson.Parse(body).ForEach(func(_, c gjson.Result) bool {
		if !c.Get("IsRated").Bool() {
			return true
		}
		n := int(c.Get("NewRating").Int())
		r.ratedMatches++
		r.rating = n
		r.highest = max(r.highest, n)
		return true
	})
	return r
}

func validateProfile(res *whttp.WHTTPRes) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return err
	}
	if doc.Find("table.dl-table").Length() == 0 {
		return errors.New("atcoder profile: no user table on page")
	}
	return nil
}

// parseProfile reads the rating rows of the profile page.
func parseProfile(body string) (ratingSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ratingSummary{}, err
	}
	var r ratingSummary
	doc.Find("table.dl-table tr").Each(func(_ int, row *goquery.Selection) {
		n := firstInt(row.Find("td").First().Text())
		switch strings.TrimSpace(row.Find("th").First().Text()) {
		case "Rating":
			r.rating = n
		case "Highest Rating":
			r.highest = n
		case "Rated Matches":
			r.ratedMatches = n
		}
	})
	return r, nil
}

func firstInt(s string) int {
	n, _ := strconv.Atoi(leadingInt.FindString(s))
	return n
}

func validateACRank(res *whttp.WHTTPRes) error {
	if !gjson.Get(res.BodyString, "count").Exists() {
		return errors.New("ac_rank: missing count")
	}
	return nil
}
