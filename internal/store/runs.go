package store

import (
	"context"
	"fmt"
	"time"
)

// RunRecord summarizes one finished sync run.
type RunRecord struct {
	ID          string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	State       string    `json:"state"`
	PagesTotal  int       `json:"pages_total"`
	PagesFailed int       `json:"pages_failed"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
}

// RecordRun stores a run summary. Recording the same run id twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
		(run_id, started_at, finished_at, state, pages_total, pages_failed,
		 inserted, updated, unchanged, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.State,
		r.PagesTotal, r.PagesFailed, r.Inserted, r.Updated, r.Unchanged, r.Skipped, r.Failed,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, state, pages_total, pages_failed,
		       inserted, updated, unchanged, skipped, failed
		FROM sync_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(
			&r.ID, &started, &finished, &r.State, &r.PagesTotal, &r.PagesFailed,
			&r.Inserted, &r.Updated, &r.Unchanged, &r.Skipped, &r.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
