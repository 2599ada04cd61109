package leetcode

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	LEETCODE_STATS_ENDPOINT   = "https://leetcode-stats-api.herokuapp.com/"
	LEETCODE_GRAPHQL_ENDPOINT = "https://leetcode.com/graphql"
)

const profileQuery = `query userProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile { ranking reputation }
    submitStatsGlobal {
      acSubmissionNum { difficulty count submissions }
      totalSubmissionNum { difficulty count submissions }
    }
    userCalendar { streak totalActiveDays submissionCalendar }
  }
}`

func graphQLBody(username string) string {
	body, _ := json.Marshal(map[string]any{
		"operationName": "userProfile",
		"query":         profileQuery,
		"variables":     map[string]string{"username": username},
	})
	return string(body)
}

func validateStatsAPI(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) {
		return errors.New("stats api: response is not JSON")
	}
	if st := gjson.Get(res.BodyString, "status").String(); st != "success" {
		msg := gjson.Get(res.BodyString, "message").String()
		if msg == "" {
			msg = "status " + strconv.Quote(st)
		}
		return errors.New("stats api: " + msg)
	}
	return nil
}

func validateGraphQL(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) {
		return errors.New("graphql: response is not JSON")
	}
	if errs := gjson.Get(res.BodyString, "errors.0.message"); errs.Exists() {
		return errors.New("graphql: " + errs.String())
	}
	if gjson.Get(res.BodyString, "data.matchedUser").Type != gjson.JSON {
		return errors.New("graphql: user not found")
	}
	return nil
}

// parseStatsAPI reads the community stats API payload.
func parseStatsAPI(body string, now time.Time) *stats.LeetCodeStats {
	s := &stats.LeetCodeStats{
		TotalSolved:    int(gjson.Get(body, "totalSolved").Int()),
		EasySolved:     int(gjson.Get(body, "easySolved").Int()),
		MediumSolved:   int(gjson.Get(body, "mediumSolved").Int()),
		HardSolved:     int(gjson.Get(body, "hardSolved").Int()),
		Ranking:        int(gjson.Get(body, "ranking").Int()),
		AcceptanceRate: round2(gjson.Get(body, "acceptanceRate").Float()),
		Reputation:     int(gjson.Get(body, "reputation").Int()),
	}
	cal := calendar(gjson.Get(body, "submissionCalendar"))
	s.Streak, s.TotalActiveDays = streak(cal, now)
	return s
}

// parseGraphQL reads the leetcode.com GraphQL payload.
func parseGraphQL(body string, now time.Time) *stats.LeetCodeStats {
	user := gjson.Get(body, "data.matchedUser")
	s := &stats.LeetCodeStats{
		Ranking:    int(user.Get("profile.ranking").Int()),
		Reputation: int(user.Get("profile.reputation").Int()),
	}

	var acSubmissions, totalSubmissions int64
	user.Get("submitStatsGlobal.acSubmissionNum").ForEach(func(_, v gjson.Result) bool {
		n := int(v.Get("count").Int())
		switch v.Get("difficulty").String() {
		case "All":
			s.TotalSolved = n
			acSubmissions = v.Get("submissions").Int()
		case "Easy":
			s.EasySolved = n
		case "Medium":
			s.MediumSolved = n
		case "Hard":
			s.HardSolved = n
		}
		return true
	})
	user.Get("submitStatsGlobal.totalSubmissionNum").ForEach(func(_, v gjson.Result) bool {
		if v.Get("difficulty").String() == "All" {
			totalSubmissions = v.Get("submissions").Int()
			return false
		}
		return true
	})
	if totalSubmissions > 0 {
		s.AcceptanceRate = round2(float64(acSubmissions) * 100 / float64(totalSubmissions))
	}

	// The calendar object is itself a JSON document encoded as a string.
	cal := calendar(gjson.Parse(user.Get("userCalendar.submissionCalendar").String()))
	s.Streak, s.TotalActiveDays = streak(cal, now)
	if v := user.Get("userCalendar.streak"); v.Exists() {
		s.Streak = int(v.Int())
	}
	if v := user.Get("userCalendar.totalActiveDays"); v.Exists() {
		s.TotalActiveDays = int(v.Int())
	}
	return s
}

// calendar maps a UTC day to the number of submissions made that day.
func calendar(r gjson.Result) map[string]int64 {
	out := map[string]int64{}
	r.ForEach(func(k, v gjson.Result) bool {
		ts, err := strconv.ParseInt(k.String(), 10, 64)
		if err != nil || v.Int() <= 0 {
			return true
		}
		out[time.Unix(ts, 0).UTC().Format(time.DateOnly)] += v.Int()
		return true
	})
	return out
}

// streak counts consecutive active days ending today, or yesterday when
// nothing was submitted yet today, and the number of active days overall.
func streak(cal map[string]int64, now time.Time) (int, int) {
	day := now.UTC()
	if cal[day.Format(time.DateOnly)] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for cal[day.Format(time.DateOnly)] > 0 {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n, len(cal)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
