// Package scheduler fires batch runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/batch"
)

const DefaultSchedule = "@every 30m"

type Triggerer interface {
	Trigger(ctx context.Context, trigger string) (batch.Report, error)
}

// LastRun holds the result of the last scheduled run.
type LastRun struct {
	StartedAt time.Time
	Duration  time.Duration
	ReportID  string
	Success   bool
	Skipped   bool // another run was still in progress
	Error     string
}

// cronLogger routes cron's own messages, including recovered panics, to logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func kvFields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(kvFields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithFields(kvFields(kv)).WithError(err).Error("cron: " + msg)
}

type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   Triggerer
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	last *LastRun
}

// New parses spec (standard five fields or a descriptor such as
// "@every 30m") and registers the batch job. Call Start to begin firing.
func New(runner Triggerer, spec string, log logrus.FieldLogger) (*Scheduler, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if spec == "" {
		spec = DefaultSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	clog := cronLogger{log}
	c := cron.New(cron.WithParser(parser), cron.WithLogger(clog), cron.WithChain(cron.Recover(clog)))

	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, schedule: sched, runner: runner, log: log, ctx: ctx, cancel: cancel}
	c.Schedule(sched, cron.FuncJob(func() { s.RunOnce(s.ctx) }))
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("batch scheduler started")
	s.cron.Start()
}

// Stop halts the schedule, cancels a run in flight and returns a context
// that is done once it has returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

// RunOnce performs one scheduled batch run and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	run := &LastRun{StartedAt: time.Now().UTC()}
	rep, err := s.runner.Trigger(ctx, "scheduled")
	run.Duration = time.Since(run.StartedAt)

	switch {
	case errors.Is(err, batch.ErrRunInProgress):
		run.Skipped = true
		s.log.Info("scheduled batch skipped: a run is already in progress")
	case err != nil:
		run.Error = err.Error()
		run.ReportID = rep.ID
		s.log.Errorf("scheduled batch failed: %v", err)
	default:
		run.Success = true
		run.ReportID = rep.ID
	}

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
}

// LastRun returns a copy of the last recorded run.
func (s *Scheduler) LastRun() (LastRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return LastRun{}, false
	}
	return *s.last, true
}

// Next returns the next activation time after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now())
}
