package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

func (d *DB) SaveRun(ctx context.Context, r RunRecord) error {
	outcomes, err := json.Marshal(r.Outcomes)
	if err != nil {
		return err
	}
	if r.Outcomes == nil {
		outcomes = []byte("[]")
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO batch_runs(id, trigger, started_at, finished_at, success_count, fail_count, outcomes) VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.Trigger, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.SuccessCount, r.FailCount, string(outcomes))
	return err
}

// ListRuns returns the most recent N batch runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, trigger, started_at, finished_at, success_count, fail_count, outcomes FROM batch_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var started, finished, outcomes string
		if err := rows.Scan(&r.ID, &r.Trigger, &started, &finished, &r.SuccessCount, &r.FailCount, &outcomes); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
