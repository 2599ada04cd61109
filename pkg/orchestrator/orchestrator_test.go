package orchestrator

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
)

type fakeAdapter struct {
	p     stats.Platform
	fetch func(ctx context.Context, username string) (stats.PlatformStats, error)
}

func (f *fakeAdapter) Platform() stats.Platform { return f.p }

func (f *fakeAdapter) Username(u string) (string, error) {
	if strings.HasPrefix(u, "bad") {
		return "", &platforms.ConfigurationError{Platform: f.p, URL: u, Reason: "no username in path"}
	}
	return path.Base(u), nil
}

func (f *fakeAdapter) Fetch(ctx context.Context, u string) (stats.PlatformStats, error) {
	name, err := f.Username(u)
	if err != nil {
		return nil, err
	}
	return f.fetch(ctx, name)
}

func live(p stats.Platform, s stats.PlatformStats, username string) stats.PlatformStats {
	platforms.Live(s.Meta(), p, username)
	return s
}

func registry(adapters ...*fakeAdapter) platforms.Registry {
	r := platforms.Registry{}
	for _, a := range adapters {
		r[a.p] = a
	}
	return r
}

func okLeetCode() *fakeAdapter {
	return &fakeAdapter{p: stats.LeetCode, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		return live(stats.LeetCode, &stats.LeetCodeStats{TotalSolved: 120, Streak: 6}, u), nil
	}}
}

func okCodeforces() *fakeAdapter {
	return &fakeAdapter{p: stats.Codeforces, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		return live(stats.Codeforces, &stats.CodeforcesStats{ProblemsSolved: 45}, u), nil
	}}
}

func okHackerRank() *fakeAdapter {
	return &fakeAdapter{p: stats.HackerRank, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		return live(stats.HackerRank, &stats.HackerRankStats{ProblemsSolved: 10}, u), nil
	}}
}

func TestScrapeEntityAggregates(t *testing.T) {
	o := New(Config{Registry: registry(okLeetCode(), okCodeforces(), okHackerRank())})

	res, err := o.ScrapeEntity(context.Background(), "student-1", map[stats.Platform]string{
		stats.LeetCode:   "https://leetcode.com/u/alice",
		stats.Codeforces: "https://codeforces.com/profile/alice",
		stats.HackerRank: "https://hackerrank.com/alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Aggregate.TotalSolved != 175 || res.Aggregate.MaxStreak != 6 || res.Aggregate.LivePlatforms != 3 {
		t.Fatalf("unexpected aggregate %+v", res.Aggregate)
	}
	for _, p := range []stats.Platform{stats.LeetCode, stats.Codeforces, stats.HackerRank} {
		if res.Statuses[p].State != stats.StateCompleted {
			t.Fatalf("%s: expected completed, got %+v", p, res.Statuses[p])
		}
	}
}

func TestScrapeEntityNoURLNoStatus(t *testing.T) {
	o := New(Config{Registry: registry(okLeetCode(), okCodeforces(), okHackerRank())})

	res, err := o.ScrapeEntity(context.Background(), "e1", map[stats.Platform]string{
		stats.LeetCode:   "https://leetcode.com/u/alice",
		stats.Codeforces: "",
		stats.HackerRank: "   ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Statuses) != 1 || len(res.Stats) != 1 {
		t.Fatalf("only leetcode should be tracked, got statuses %v stats %v", res.Statuses, res.Stats)
	}
	if _, ok := o.Tracker().Get("e1", stats.Codeforces); ok {
		t.Fatal("platform without URL got a status")
	}
}

func TestScrapeEntitySkipsUnusableURL(t *testing.T) {
	o := New(Config{Registry: registry(okLeetCode(), okCodeforces())})

	res, _ := o.ScrapeEntity(context.Background(), "e1", map[stats.Platform]string{
		stats.LeetCode:   "https://leetcode.com/u/alice",
		stats.Codeforces: "bad-url",
		stats.AtCoder:    "https://atcoder.jp/users/alice",
	})
	if _, ok := res.Skipped[stats.Codeforces]; !ok {
		t.Fatalf("expected codeforces skipped, got %+v", res.Skipped)
	}
	if _, ok := res.Skipped[stats.AtCoder]; !ok {
		t.Fatalf("expected platform without adapter skipped, got %+v", res.Skipped)
	}
	if _, ok := res.Statuses[stats.Codeforces]; ok {
		t.Fatal("skipped platform must not get a status")
	}
}

func TestScrapeEntityIsolatesFailures(t *testing.T) {
	var cancelled = make(chan struct{})
	slow := &fakeAdapter{p: stats.GitHub, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}}
	failing := &fakeAdapter{p: stats.Codeforces, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		return nil, errors.New("parser broke")
	}}
	panicking := &fakeAdapter{p: stats.AtCoder, fetch: func(ctx context.Context, u string) (stats.PlatformStats, error) {
		panic("nil map")
	}}

	o := New(Config{
		Registry:        registry(okLeetCode(), slow, failing, panicking),
		PlatformTimeout: 50 * time.Millisecond,
	})

	res, err := o.ScrapeEntity(context.Background(), "e1", map[stats.Platform]string{
		stats.LeetCode:   "https://leetcode.com/u/alice",
		stats.GitHub:     "https://github.com/alice",
		stats.Codeforces: "https://codeforces.com/profile/alice",
		stats.AtCoder:    "https://atcoder.jp/users/alice",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Every configured platform has a record, whatever happened to it.
	for _, p := range []stats.Platform{stats.LeetCode, stats.GitHub, stats.Codeforces, stats.AtCoder} {
		if res.Stats[p] == nil {
			t.Fatalf("%s: missing record", p)
		}
	}
	if res.Stats[stats.LeetCode].Meta().Provenance != stats.Live {
		t.Fatal("healthy sibling was affected")
	}

	gh := res.Stats[stats.GitHub].Meta()
	if gh.Provenance != stats.Estimated || gh.Error != "platform timeout after 50ms" {
		t.Fatalf("expected timeout substitution, got %+v", gh)
	}
	if res.Statuses[stats.GitHub].State != stats.StateCompleted {
		t.Fatalf("timed out platform should complete with estimated data, got %+v", res.Statuses[stats.GitHub])
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}

	for _, p := range []stats.Platform{stats.Codeforces, stats.AtCoder} {
		if res.Statuses[p].State != stats.StateFailed || res.Statuses[p].Error == "" {
			t.Fatalf("%s: expected failed with error, got %+v", p, res.Statuses[p])
		}
		if res.Stats[p].Meta().Provenance != stats.Estimated {
			t.Fatalf("%s: expected estimated record", p)
		}
	}
	if !strings.Contains(res.Statuses[stats.AtCoder].Error, "panic") {
		t.Fatalf("panic not reported: %q", res.Statuses[stats.AtCoder].Error)
	}
}

func TestScrapeEntityRejectsInvalidID(t *testing.T) {
	o := New(Config{Registry: registry(okLeetCode())})
	for _, id := range []string{"", "has space", "../etc", strings.Repeat("a", 129), "a/b"} {
		if _, err := o.ScrapeEntity(context.Background(), id, nil); !errors.Is(err, ErrInvalidEntity) {
			t.Fatalf("%q: expected ErrInvalidEntity, got %v", id, err)
		}
	}
}

func TestScrapeEntityPersists(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "statscope.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	o := New(Config{Registry: registry(okLeetCode(), okCodeforces()), Store: db})
	if _, err := o.ScrapeEntity(context.Background(), "e1", map[stats.Platform]string{
		stats.LeetCode:   "https://leetcode.com/u/alice",
		stats.Codeforces: "https://codeforces.com/profile/alice",
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := db.GetEntity(context.Background(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Aggregate == nil || rec.Aggregate.TotalSolved != 165 || rec.LastUpdated.IsZero() {
		t.Fatalf("aggregate not persisted: %+v", rec.Aggregate)
	}
	got, err := rec.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[stats.Codeforces].SolvedCount() != 45 {
		t.Fatalf("platform data not persisted: %+v", got)
	}
	if rec.ScrapingStatus[stats.LeetCode].State != stats.StateCompleted {
		t.Fatalf("status not persisted: %+v", rec.ScrapingStatus)
	}
}

func TestScrapeEntityShrinkingProfilesKeepDocumentConsistent(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "statscope.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	runs := []map[stats.Platform]string{
		{stats.LeetCode: "https://leetcode.com/u/alice", stats.Codeforces: "https://codeforces.com/profile/alice"},
		{stats.LeetCode: "https://leetcode.com/u/alice"},
		{},
	}
	for i, profiles := range runs {
		o := New(Config{Registry: registry(okLeetCode(), okCodeforces()), Store: db})
		if _, err := o.ScrapeEntity(ctx, "e1", profiles); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}

		rec, err := db.GetEntity(ctx, "e1")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(rec.ScrapingStatus) != 2 || rec.ScrapingStatus[stats.Codeforces].State != stats.StateCompleted {
			t.Fatalf("run %d: statuses must never be deleted, got %+v", i, rec.ScrapingStatus)
		}
		stored, err := rec.Stats()
		if err != nil {
			t.Fatal(err)
		}
		if want := stats.Aggregate(stored); rec.Aggregate == nil || *rec.Aggregate != want {
			t.Fatalf("run %d: stored aggregate %+v does not match stored records %+v", i, rec.Aggregate, want)
		}
		if rec.Aggregate.TotalSolved != 165 || rec.Aggregate.LivePlatforms != 2 {
			t.Fatalf("run %d: unexpected aggregate %+v", i, rec.Aggregate)
		}
	}
}

func TestScrapeEntityWithoutUsableURLWritesNothing(t *testing.T) {
	store := &recordingStore{}
	o := New(Config{Registry: registry(okLeetCode()), Store: store})

	res, err := o.ScrapeEntity(context.Background(), "e1", map[stats.Platform]string{stats.LeetCode: "bad-url"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stats) != 0 || len(res.Skipped) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(store.writes) != 0 {
		t.Fatalf("expected no writes, got %+v", store.writes)
	}
}

type recordingStore struct {
	mu     sync.Mutex
	writes []map[string]any
}

func (r *recordingStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, fields)
	return nil
}
