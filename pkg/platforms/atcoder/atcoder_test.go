package atcoder

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
)

const historyPayload = `[
{"IsRated":true,"NewRating":400,"ContestName":"ABC 300"},
{"IsRated":false,"NewRating":0,"ContestName":"ARC 160"},
{"IsRated":true,"NewRating":1350,"ContestName":"ABC 301"},
{"IsRated":true,"NewRating":1210,"ContestName":"ABC 302"}]`

const profilePage = `<html><head><title>chokudai - AtCoder</title></head><body>
<table class="dl-table mt-2">
<tr><th class="no-break">Rank</th><td>12th</td></tr>
<tr><th class="no-break">Rating</th><td><span class="user-orange">2750</span></td></tr>
<tr><th class="no-break">Highest Rating</th><td><span class="user-red">2900</span> <span class="gray">―</span> 8 Dan</td></tr>
<tr><th class="no-break">Rated Matches</th><td>42 <span class="glyphicon"></span></td></tr>
</table></body></html>`

func newAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a := New(platforms.Deps{Fetcher: retrieval.New(retrieval.Config{AttemptTimeout: 2 * time.Second})})
	a.UsersEndpoint = srv.URL + "/users/"
	a.ACRankEndpoint = srv.URL + "/ac_rank"
	return a
}

func TestFetchFromHistory(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/chokudai/history/json":
			io.WriteString(w, historyPayload)
		case "/ac_rank":
			if r.URL.Query().Get("user") != "chokudai" {
				t.Errorf("unexpected user %q", r.URL.Query().Get("user"))
			}
			io.WriteString(w, `{"count":321,"rank":100}`)
		}
	})

	got, err := a.Fetch(context.Background(), "https://atcoder.jp/users/chokudai")
	if err != nil {
		t.Fatal(err)
	}
	s := got.(*stats.AtCoderStats)
	if s.Provenance != stats.Live || s.Rating != 1210 || s.HighestRating != 1350 || s.RatedMatches != 3 {
		t.Fatalf("unexpected record %+v", s)
	}
	if s.Rank != "Cyan" || s.ProblemsSolved != 321 {
		t.Fatalf("unexpected rank/solved %q %d", s.Rank, s.ProblemsSolved)
	}
}

func TestFetchFallsBackToProfilePage(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/chokudai":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, profilePage)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	got, _ := a.Fetch(context.Background(), "atcoder.jp/users/chokudai")
	s := got.(*stats.AtCoderStats)
	if s.Provenance != stats.Live || s.Rating != 2750 || s.HighestRating != 2900 || s.RatedMatches != 42 {
		t.Fatalf("unexpected record %+v", s)
	}
	if s.Rank != "Orange" || s.ProblemsSolved != 0 {
		t.Fatalf("unexpected rank/solved %q %d", s.Rank, s.ProblemsSolved)
	}
}

func TestFetchSynthesizesWhenRatingUnavailable(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	got, err := a.Fetch(context.Background(), "https://atcoder.jp/users/chokudai")
	if err != nil {
		t.Fatal(err)
	}
	if m := got.Meta(); m.Provenance != stats.Estimated || m.Error == "" {
		t.Fatalf("expected estimated record, got %+v", m)
	}
}
