// Package status tracks the per-(entity, platform) scrape state machine.
// The in-memory map is authoritative for the running process; every
// transition is also written through to the entity store.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/stats"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// EntityPersistenceError reports a failed write of an entity field. The
// in-memory state it refers to is kept.
type EntityPersistenceError struct {
	EntityID string
	Field    string
	Err      error
}

func (e *EntityPersistenceError) Error() string {
	return fmt.Sprintf("persist %s of entity %s: %v", e.Field, e.EntityID, e.Err)
}

func (e *EntityPersistenceError) Unwrap() error { return e.Err }

// Store is the subset of the entity store the tracker writes to.
type Store interface {
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

var allowed = map[stats.ScrapeState][]stats.ScrapeState{
	stats.StatePending:    {stats.StateInProgress},
	stats.StateInProgress: {stats.StateCompleted, stats.StateFailed},
	stats.StateCompleted:  {stats.StateInProgress},
	stats.StateFailed:     {stats.StateInProgress},
}

func canMove(from, to stats.ScrapeState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Tracker struct {
	mu       sync.Mutex
	statuses map[string]map[stats.Platform]stats.ScrapeStatus

	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// New returns a tracker writing through to store. A nil store keeps state
// in memory only.
func New(store Store, log logrus.FieldLogger) *Tracker {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Tracker{
		statuses: map[string]map[stats.Platform]stats.ScrapeStatus{},
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Initialize resets the given platforms to pending. Statuses of platforms
// not listed are kept as they are.
func (t *Tracker) Initialize(ctx context.Context, entityID string, platforms []stats.Platform) error {
	if len(platforms) == 0 {
		return nil
	}
	now := t.now()
	fields := make(map[string]any, len(platforms))

	t.mu.Lock()
	m, ok := t.statuses[entityID]
	if !ok {
		m = map[stats.Platform]stats.ScrapeStatus{}
		t.statuses[entityID] = m
	}
	for _, p := range platforms {
		st := stats.ScrapeStatus{State: stats.StatePending, LastUpdated: now}
		m[p] = st
		fields["scrapingStatus."+string(p)] = st
	}
	t.mu.Unlock()

	return t.persistFields(ctx, entityID, "scrapingStatus", fields)
}

func (t *Tracker) Begin(ctx context.Context, entityID string, p stats.Platform) error {
	return t.move(ctx, entityID, p, stats.StateInProgress, "")
}

func (t *Tracker) Complete(ctx context.Context, entityID string, p stats.Platform) error {
	return t.move(ctx, entityID, p, stats.StateCompleted, "")
}

func (t *Tracker) Fail(ctx context.Context, entityID string, p stats.Platform, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.move(ctx, entityID, p, stats.StateFailed, msg)
}

// Get returns the current status of one key.
func (t *Tracker) Get(entityID string, p stats.Platform) (stats.ScrapeStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.statuses[entityID][p]
	return s, ok
}

// Snapshot returns a copy of the entity's status map.
func (t *Tracker) Snapshot(entityID string) map[stats.Platform]stats.ScrapeStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyMap(t.statuses[entityID])
}

func (t *Tracker) move(ctx context.Context, entityID string, p stats.Platform, to stats.ScrapeState, errMsg string) error {
	t.mu.Lock()
	cur, ok := t.statuses[entityID][p]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s/%s has no status", ErrInvalidTransition, entityID, p)
	}
	if !canMove(cur.State, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s/%s %s -> %s", ErrInvalidTransition, entityID, p, cur.State, to)
	}
	next := stats.ScrapeStatus{State: to, LastUpdated: t.now(), Error: errMsg}
	t.statuses[entityID][p] = next
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"entity": entityID, "platform": p, "state": to}).Debug("status changed")
	return t.persist(ctx, entityID, "scrapingStatus."+string(p), next)
}

func (t *Tracker) persist(ctx context.Context, entityID, field string, value any) error {
	return t.persistFields(ctx, entityID, field, map[string]any{field: value})
}

func (t *Tracker) persistFields(ctx context.Context, entityID, field string, fields map[string]any) error {
	if t.store == nil {
		return nil
	}
	if err := t.store.UpdateFields(ctx, entityID, fields); err != nil {
		perr := &EntityPersistenceError{EntityID: entityID, Field: field, Err: err}
		t.log.WithField("entity", entityID).Error(perr)
		return perr
	}
	return nil
}

func copyMap(m map[stats.Platform]stats.ScrapeStatus) map[stats.Platform]stats.ScrapeStatus {
	out := make(map[stats.Platform]stats.ScrapeStatus, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
