// Package batch runs the orchestrator over a roster of entities, strictly
// one after another with a pause in between, and reports per-entity outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/metrics"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
)

const DefaultDelay = 2 * time.Second

var ErrRunInProgress = errors.New("batch run already in progress")

// BatchEntityError is the failure of one entity within a run.
type BatchEntityError struct {
	EntityID string
	Err      error
}

func (e *BatchEntityError) Error() string {
	return fmt.Sprintf("entity %s: %v", e.EntityID, e.Err)
}

func (e *BatchEntityError) Unwrap() error { return e.Err }

type Scraper interface {
	ScrapeEntity(ctx context.Context, entityID string, profiles map[stats.Platform]string) (*orchestrator.Result, error)
}

type Store interface {
	ListEntities(ctx context.Context) ([]stats.Entity, error)
	SaveRun(ctx context.Context, r storage.RunRecord) error
}

// Locker excludes runs in other processes.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

type Outcome struct {
	EntityID string
	Duration time.Duration
	Err      *BatchEntityError
}

type Report struct {
	ID           string
	Trigger      string
	StartedAt    time.Time
	FinishedAt   time.Time
	SuccessCount int
	FailCount    int
	Outcomes     []Outcome
}

// Record converts the report to its persisted form.
func (r Report) Record() storage.RunRecord {
	rec := storage.RunRecord{
		ID:           r.ID,
		Trigger:      r.Trigger,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		SuccessCount: r.SuccessCount,
		FailCount:    r.FailCount,
		Outcomes:     make([]storage.RunOutcome, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		ro := storage.RunOutcome{EntityID: o.EntityID, Success: o.Err == nil, Duration: o.Duration}
		if o.Err != nil {
			ro.Error = o.Err.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, ro)
	}
	return rec
}

type Config struct {
	Scraper Scraper
	Store   Store
	Lock    Locker
	Delay   time.Duration
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

type Runner struct {
	scraper Scraper
	store   Store
	lock    Locker
	delay   time.Duration
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Runner {
	r := &Runner{
		scraper: cfg.Scraper,
		store:   cfg.Store,
		lock:    cfg.Lock,
		delay:   cfg.Delay,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		sleep:   sleepCtx,
	}
	if r.delay <= 0 {
		r.delay = DefaultDelay
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunAll scrapes every entity that has at least one profile URL. It never
// aborts early: failures, panics and cancellation are recorded per entity.
func (r *Runner) RunAll(ctx context.Context, roster []stats.Entity) Report {
	return r.run(ctx, "", roster)
}

func (r *Runner) run(ctx context.Context, trigger string, roster []stats.Entity) Report {
	rep := Report{ID: uuid.NewString(), Trigger: trigger, StartedAt: time.Now().UTC()}
	log := r.log.WithFields(logrus.Fields{"run": rep.ID, "trigger": trigger})

	var eligible []stats.Entity
	for _, e := range roster {
		if len(e.ConfiguredPlatforms()) > 0 {
			eligible = append(eligible, e)
		}
	}
	log.Infof("batch run started: %d entities", len(eligible))

	for i, e := range eligible {
		var o Outcome
		if err := ctx.Err(); err != nil {
			o = Outcome{EntityID: e.ID, Err: &BatchEntityError{EntityID: e.ID, Err: err}}
		} else {
			o = r.runOne(ctx, e)
		}

		rep.Outcomes = append(rep.Outcomes, o)
		if o.Err != nil {
			rep.FailCount++
			r.metrics.BatchEntity("failed")
			log.WithField("entity", e.ID).Error(o.Err)
		} else {
			rep.SuccessCount++
			r.metrics.BatchEntity("ok")
		}

		if i < len(eligible)-1 && ctx.Err() == nil {
			// A cancelled sleep leaves the remaining entities to the check above.
			_ = r.sleep(ctx, r.delay)
		}
	}

	rep.FinishedAt = time.Now().UTC()
	log.WithFields(logrus.Fields{"ok": rep.SuccessCount, "failed": rep.FailCount}).Info("batch run finished")
	return rep
}

func (r *Runner) runOne(ctx context.Context, e stats.Entity) (o Outcome) {
	start := time.Now()
	o.EntityID = e.ID
	defer func() {
		if p := recover(); p != nil {
			o.Err = &BatchEntityError{EntityID: e.ID, Err: fmt.Errorf("panic: %v", p)}
		}
		o.Duration = time.Since(start)
	}()

	if _, err := r.scraper.ScrapeEntity(ctx, e.ID, e.Profiles); err != nil {
		o.Err = &BatchEntityError{EntityID: e.ID, Err: err}
	}
	return o
}

// Trigger runs one batch over the stored roster and saves the report.
// It returns ErrRunInProgress when another run, in this process or another
// one, has not finished yet.
func (r *Runner) Trigger(ctx context.Context, trigger string) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	if r.lock != nil {
		ok, err := r.lock.TryLock()
		if err != nil {
			return Report{}, err
		}
		if !ok {
			return Report{}, ErrRunInProgress
		}
		defer func() {
			if err := r.lock.Unlock(); err != nil {
				r.log.Warn(err)
			}
		}()
	}

	roster, err := r.store.ListEntities(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load roster: %w", err)
	}

	rep := r.run(ctx, trigger, roster)
	r.metrics.BatchRun(trigger, rep.FinishedAt.Sub(rep.StartedAt))

	if err := r.store.SaveRun(context.WithoutCancel(ctx), rep.Record()); err != nil {
		return rep, fmt.Errorf("save run report: %w", err)
	}
	return rep, nil
}

// Running reports whether a run started by this process is in flight.
func (r *Runner) Running() bool { return r.running.Load() }
