package codeforces

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

const (
	infoPayload   = `{"status":"OK","result":[{"handle":"tourist","rating":1650,"maxRating":2150,"rank":"expert","contribution":42,"friendOfCount":7}]}`
	statusPayload = `{"status":"OK","result":[
{"contestId":1,"problem":{"contestId":1,"index":"A"},"verdict":"OK"},
{"contestId":1,"problem":{"contestId":1,"index":"A"},"verdict":"OK"},
{"contestId":1,"problem":{"contestId":1,"index":"B"},"verdict":"WRONG_ANSWER"},
{"contestId":2,"problem":{"contestId":2,"index":"A"},"verdict":"OK"},
{"problem":{"problemsetName":"acmsguru","index":"100"},"verdict":"OK"}]}`
	ratingPayload = `{"status":"OK","result":[{"contestId":1},{"contestId":2},{"contestId":5}]}`
)

func newAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a := New(platforms.Deps{Fetcher: retrieval.New(retrieval.Config{AttemptTimeout: 2 * time.Second})})
	a.APIEndpoint = srv.URL + "/api/"
	return a
}

func TestFetch(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user.info":
			if r.URL.Query().Get("handles") != "tourist" {
				t.Errorf("unexpected handles %q", r.URL.Query().Get("handles"))
			}
			io.WriteString(w, infoPayload)
		case "/api/user.status":
			io.WriteString(w, statusPayload)
		case "/api/user.rating":
			io.WriteString(w, ratingPayload)
		}
	})

	got, err := a.Fetch(context.Background(), "https://codeforces.com/profile/tourist")
	if err != nil {
		t.Fatal(err)
	}
	s := got.(*stats.CodeforcesStats)
	if s.Provenance != stats.Live {
		t.Fatalf("expected live record, got %+v", s.Envelope)
	}
	if s.Rating != 1650 || s.MaxRating != 2150 || s.Rank != "Candidate Master" || s.MaxRank != "International Master" {
		t.Fatalf("unexpected ratings %+v", s)
	}
	if s.ProblemsSolved != 3 || s.ContestsAttended != 3 || s.Contribution != 42 || s.FriendOfCount != 7 {
		t.Fatalf("unexpected counts %+v", s)
	}
}

func TestFetchEstimatesSolvedWhenStatusFails(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user.info":
			io.WriteString(w, infoPayload)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	got, _ := a.Fetch(context.Background(), "https://codeforces.com/profile/tourist")
	s := got.(*stats.CodeforcesStats)
	if s.Provenance != stats.Live || s.ProblemsSolved != 165 || s.ContestsAttended != 0 {
		t.Fatalf("unexpected record %+v", s)
	}
}

func TestFetchUnknownHandleSynthesizes(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status":"FAILED","comment":"handles: User with handle nobody not found"}`)
	})

	got, err := a.Fetch(context.Background(), "https://codeforces.com/profile/nobody")
	if err != nil {
		t.Fatal(err)
	}
	if m := got.Meta(); m.Provenance != stats.Estimated || m.Error == "" || m.Username != "nobody" {
		t.Fatalf("expected estimated record with error, got %+v", m)
	}
}
