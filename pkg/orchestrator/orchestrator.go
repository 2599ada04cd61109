// Package orchestrator scrapes every configured platform of one entity in
// parallel, isolates per-platform failures and timeouts, and persists the
// per-platform records and the derived aggregate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/metrics"
	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/status"
	"github.com/sw33tLie/statscope/pkg/synth"
)

const DefaultPlatformTimeout = 25 * time.Second

var ErrInvalidEntity = errors.New("invalid entity id")

var entityRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidEntityID reports whether id can name an entity.
func ValidEntityID(id string) bool {
	return entityRe.MatchString(id)
}

// StatsReader is implemented by stores that can return the persisted
// platform records of an entity.
type StatsReader interface {
	PlatformStats(ctx context.Context, entityID string) (map[stats.Platform]stats.PlatformStats, error)
}

type Config struct {
	Registry platforms.Registry
	// Tracker defaults to an in-memory tracker over Store.
	Tracker         *status.Tracker
	Store           status.Store
	PlatformTimeout time.Duration
	Log             logrus.FieldLogger
	Metrics         *metrics.Metrics
}

type Orchestrator struct {
	registry platforms.Registry
	tracker  *status.Tracker
	store    status.Store
	timeout  time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		registry: cfg.Registry,
		tracker:  cfg.Tracker,
		store:    cfg.Store,
		timeout:  cfg.PlatformTimeout,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	if o.timeout <= 0 {
		o.timeout = DefaultPlatformTimeout
	}
	if o.tracker == nil {
		o.tracker = status.New(cfg.Store, o.log)
	}
	return o
}

func (o *Orchestrator) Tracker() *status.Tracker { return o.tracker }

// Result is the outcome of one ScrapeEntity call.
type Result struct {
	EntityID  string                                 `json:"entityId"`
	Stats     map[stats.Platform]stats.PlatformStats `json:"stats"`
	Aggregate stats.AggregateStats                   `json:"aggregate"`
	Statuses  map[stats.Platform]stats.ScrapeStatus  `json:"statuses"`
	// Skipped holds configured platforms whose URL could not be used.
	Skipped     map[stats.Platform]string `json:"skipped,omitempty"`
	LastUpdated time.Time                 `json:"lastUpdated"`
}

type job struct {
	adapter  platforms.Adapter
	url      string
	username string
}

// ScrapeEntity fetches every platform with a configured URL concurrently and
// waits for all of them. Every platform that gets a status also gets a
// record: a failing or slow platform yields a synthesized one.
func (o *Orchestrator) ScrapeEntity(ctx context.Context, entityID string, profiles map[stats.Platform]string) (*Result, error) {
	if !ValidEntityID(entityID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntity, entityID)
	}
	log := o.log.WithField("entity", entityID)
	// Writes must land even when the caller gave up waiting.
	persistCtx := context.WithoutCancel(ctx)

	res := &Result{
		EntityID: entityID,
		Stats:    map[stats.Platform]stats.PlatformStats{},
		Skipped:  map[stats.Platform]string{},
	}

	var jobs []job
	var configured []stats.Platform
	for _, p := range (stats.Entity{ID: entityID, Profiles: profiles}).ConfiguredPlatforms() {
		url := strings.TrimSpace(profiles[p])
		a, ok := o.registry[p]
		if !ok {
			res.Skipped[p] = "unsupported platform"
			continue
		}
		username, err := a.Username(url)
		if err != nil {
			log.WithField("platform", p).Warnf("skipping platform: %v", err)
			res.Skipped[p] = err.Error()
			continue
		}
		jobs = append(jobs, job{adapter: a, url: url, username: username})
		configured = append(configured, p)
	}

	if len(jobs) == 0 {
		log.Warn("no usable profile URLs, nothing to scrape")
		res.Statuses = o.tracker.Snapshot(entityID)
		return res, nil
	}

	// Persistence failures are logged by the tracker and never stop a scrape.
	_ = o.tracker.Initialize(persistCtx, entityID, configured)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			s := o.runPlatform(ctx, persistCtx, entityID, j)
			mu.Lock()
			res.Stats[j.adapter.Platform()] = s
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	res.Aggregate = stats.Aggregate(o.currentStats(persistCtx, log, entityID, res.Stats))
	res.LastUpdated = time.Now().UTC()
	res.Statuses = o.tracker.Snapshot(entityID)

	if o.store != nil {
		if err := o.store.UpdateFields(persistCtx, entityID, map[string]any{
			"aggregate":   res.Aggregate,
			"lastUpdated": res.LastUpdated,
		}); err != nil {
			log.Error(&status.EntityPersistenceError{EntityID: entityID, Field: "aggregate", Err: err})
		}
	}

	log.WithFields(logrus.Fields{
		"platforms":    len(res.Stats),
		"skipped":      len(res.Skipped),
		"total_solved": res.Aggregate.TotalSolved,
		"estimated":    res.Aggregate.EstimatedPlatforms,
	}).Info("entity scraped")
	return res, nil
}

// currentStats overlays this run's records on the stored ones, so the
// aggregate covers every platform record the entity document holds.
func (o *Orchestrator) currentStats(ctx context.Context, log logrus.FieldLogger, entityID string, fresh map[stats.Platform]stats.PlatformStats) map[stats.Platform]stats.PlatformStats {
	r, ok := o.store.(StatsReader)
	if !ok {
		return fresh
	}
	stored, err := r.PlatformStats(ctx, entityID)
	if err != nil {
		log.Warnf("aggregate over this run only: %v", err)
		return fresh
	}
	for p, s := range fresh {
		stored[p] = s
	}
	return stored
}

type fetchResult struct {
	stats stats.PlatformStats
	err   error
}

// runPlatform drives one platform through its status transitions and always
// returns a record.
func (o *Orchestrator) runPlatform(ctx, persistCtx context.Context, entityID string, j job) stats.PlatformStats {
	p := j.adapter.Platform()
	log := o.log.WithFields(logrus.Fields{"entity": entityID, "platform": p})
	start := time.Now()

	if err := o.tracker.Begin(persistCtx, entityID, p); errors.Is(err, status.ErrInvalidTransition) {
		log.Warn(err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult{err: fmt.Errorf("%s adapter panic: %v", p, r)}
			}
		}()
		s, err := j.adapter.Fetch(fetchCtx, j.url)
		ch <- fetchResult{stats: s, err: err}
	}()

	var (
		s       stats.PlatformStats
		failure error
	)
	select {
	case r := <-ch:
		switch {
		case r.err != nil:
			failure = r.err
		case r.stats == nil:
			failure = fmt.Errorf("%s adapter returned no data", p)
		default:
			s = r.stats
		}
	case <-fetchCtx.Done():
		// The in-flight retrieval sees the cancellation and is not awaited.
		cancel()
		cause := fmt.Errorf("platform timeout after %s", o.timeout)
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		log.Warn(cause)
		s = synth.WithError(j.username, p, cause)
	}

	if failure != nil {
		log.Errorf("platform failed: %v", failure)
		s = synth.WithError(j.username, p, failure)
	}

	if o.store != nil {
		if err := o.store.UpdateFields(persistCtx, entityID, map[string]any{"platformData." + string(p): s}); err != nil {
			log.Error(&status.EntityPersistenceError{EntityID: entityID, Field: "platformData." + string(p), Err: err})
		}
	}

	if failure != nil {
		_ = o.tracker.Fail(persistCtx, entityID, p, failure)
	} else {
		_ = o.tracker.Complete(persistCtx, entityID, p)
	}

	o.metrics.PlatformResult(string(p), string(s.Meta().Provenance), time.Since(start))
	return s
}
