package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sw33tLie/statscope/pkg/stats"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("entity not found")

// emptyDoc is the document a new entity starts from.
const emptyDoc = `{"profiles":{},"platformData":{},"scrapingStatus":{}}`

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS entities (
  id         TEXT PRIMARY KEY,
  doc        TEXT NOT NULL CHECK (json_valid(doc)),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_runs (
  id            TEXT PRIMARY KEY,
  trigger       TEXT NOT NULL,
  started_at    TEXT NOT NULL,
  finished_at   TEXT NOT NULL,
  success_count INTEGER NOT NULL,
  fail_count    INTEGER NOT NULL,
  outcomes      TEXT NOT NULL CHECK (json_valid(outcomes))
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON batch_runs(started_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// jsonPath turns "platformData.leetcode" into "$.platformData.leetcode".
func jsonPath(field string) (string, error) {
	segs := strings.Split(field, ".")
	for _, s := range segs {
		if !segmentRe.MatchString(s) {
			return "", fmt.Errorf("invalid field path %q", field)
		}
	}
	return "$." + field, nil
}

// UpdateFields merges the given values into the entity document, creating
// the entity if needed. Keys are dotted paths; each value replaces whatever
// was stored at its path. Untouched paths are preserved.
func (d *DB) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	var setArgs []interface{}
	for _, k := range keys {
		path, err := jsonPath(k)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		pairs = append(pairs, "?, json(?)")
		setArgs = append(setArgs, path, string(raw))
	}
	set := strings.Join(pairs, ", ")

	now := formatTime(time.Now())
	q := `INSERT INTO entities(id, doc, created_at, updated_at) VALUES(?, json_set(json(?), ` + set + `), ?, ?)
ON CONFLICT(id) DO UPDATE SET doc = json_set(doc, ` + set + `), updated_at = excluded.updated_at`

	args := []interface{}{id, emptyDoc}
	args = append(args, setArgs...)
	args = append(args, now, now)
	args = append(args, setArgs...)
	_, err := d.sql.ExecContext(ctx, q, args...)
	return err
}

// ReplaceField overwrites the whole value at one path.
func (d *DB) ReplaceField(ctx context.Context, id, field string, value any) error {
	return d.UpdateFields(ctx, id, map[string]any{field: value})
}

// SetProfiles replaces the stored profile URLs of an entity.
func (d *DB) SetProfiles(ctx context.Context, id string, profiles map[stats.Platform]string) error {
	if profiles == nil {
		profiles = map[stats.Platform]string{}
	}
	return d.ReplaceField(ctx, id, "profiles", profiles)
}

func (d *DB) GetEntity(ctx context.Context, id string) (*EntityRecord, error) {
	var doc, created, updated string
	err := d.sql.QueryRowContext(ctx, "SELECT doc, created_at, updated_at FROM entities WHERE id = ?", id).Scan(&doc, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := &EntityRecord{}
	if err := json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("decode entity %s: %w", id, err)
	}
	rec.ID, rec.CreatedAt, rec.UpdatedAt = id, parseTime(created), parseTime(updated)
	return rec, nil
}

// PlatformStats returns the stored platform records of an entity. An unknown
// entity has none.
func (d *DB) PlatformStats(ctx context.Context, id string) (map[stats.Platform]stats.PlatformStats, error) {
	rec, err := d.GetEntity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return map[stats.Platform]stats.PlatformStats{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Stats()
}

// ListEntities returns every stored entity with its profile URLs, ordered by id.
func (d *DB) ListEntities(ctx context.Context) ([]stats.Entity, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, coalesce(json_extract(doc, '$.profiles'), '{}') FROM entities ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Entity
	for rows.Next() {
		var e stats.Entity
		var profiles string
		if err := rows.Scan(&e.ID, &profiles); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(profiles), &e.Profiles); err != nil {
			return nil, fmt.Errorf("decode profiles of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAggregates returns the stored summary of every entity, ordered by id.
// Entities never scraped have a zero aggregate.
func (d *DB) ListAggregates(ctx context.Context) ([]AggregateRow, error) {
	query := `
		SELECT
			id,
			coalesce(json_extract(doc, '$.aggregate.totalSolved'), 0),
			coalesce(json_extract(doc, '$.aggregate.maxStreak'), 0),
			coalesce(json_extract(doc, '$.aggregate.livePlatforms'), 0),
			coalesce(json_extract(doc, '$.aggregate.estimatedPlatforms'), 0),
			coalesce(json_extract(doc, '$.lastUpdated'), '')
		FROM
			entities
		ORDER BY
			id;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		var last string
		if err := rows.Scan(&r.EntityID, &r.Aggregate.TotalSolved, &r.Aggregate.MaxStreak,
			&r.Aggregate.LivePlatforms, &r.Aggregate.EstimatedPlatforms, &last); err != nil {
			return nil, err
		}
		r.LastUpdated = parseTime(last)
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// CURRENT_TIMESTAMP format, for rows written by hand.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
