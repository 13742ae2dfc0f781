package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// SourceRun summarizes one source's branch of a sync pass.
type SourceRun struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Since      int64  `json:"since"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Dropped    int    `json:"dropped,omitempty"`
	Watermark  int64  `json:"watermark,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunRecord is the persisted summary of one sync pass.
type RunRecord struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	EventCount int
	Degraded   bool
	Sources    []SourceRun
}

// WriteRun records a sync pass. Uses ON CONFLICT(id) DO NOTHING so a run
// is recorded at most once.
func (s *Store) WriteRun(ctx context.Context, run RunRecord) error {
	sources := run.Sources
	if sources == nil {
		sources = []SourceRun{}
	}
	reports, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("write run: marshal reports: %w", err)
	}

	degraded := 0
	if run.Degraded {
		degraded = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, finished_at, event_count, degraded, reports)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.StartedAt, run.FinishedAt, run.EventCount, degraded, string(reports))
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// ReadRuns returns the most recent runs, newest first. A non-positive
// limit returns all runs.
func (s *Store) ReadRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, event_count, degraded, reports
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var degraded int
		var reports string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.EventCount, &degraded, &reports); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Degraded = degraded != 0
		if err := json.Unmarshal([]byte(reports), &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal run %s reports: %w", r.ID, err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
