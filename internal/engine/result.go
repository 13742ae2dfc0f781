package engine

import (
	"errors"
	"time"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/store"
)

// Status is the outcome of one source's branch.
type Status string

const (
	StatusOK          Status = "ok"
	StatusInactive    Status = "inactive"
	StatusFetchFailed Status = "fetch_failed"
	StatusWriteFailed Status = "store_write_failed"
	StatusReadFailed  Status = "store_read_failed"
)

// severity orders statuses so the worst failure of a branch wins.
func (s Status) severity() int {
	switch s {
	case StatusReadFailed:
		return 3
	case StatusWriteFailed:
		return 2
	case StatusFetchFailed:
		return 1
	default:
		return 0
	}
}

// Degraded reports whether the branch failed in any way.
func (s Status) Degraded() bool {
	return s.severity() > 0
}

// SourceReport describes one source's branch of a pass.
type SourceReport struct {
	Source string
	Status Status

	// Since is the start bound the fetch used.
	Since int64

	// Fetched counts valid, distinct events returned by the source.
	Fetched int

	// Inserted counts events newly written to the store.
	Inserted int

	// Duplicates counts fetched events already present in the store.
	Duplicates int

	// Dropped counts fetched events rejected for an unknown kind or a kind
	// outside the configured filter.
	Dropped int

	// Watermark is the source's watermark after the branch; zero if the
	// source has never advanced.
	Watermark int64

	// Advanced is true when this branch moved the watermark.
	Advanced bool

	Duration time.Duration

	// Err holds the *SyncError (or a join of them) behind a degraded
	// status.
	Err error
}

func (r *SourceReport) fail(status Status, err error) {
	if status.severity() > r.Status.severity() {
		r.Status = status
	}
	if r.Err == nil {
		r.Err = err
		return
	}
	r.Err = errors.Join(r.Err, err)
}

// Result is the outcome of one pass.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Events is the merged view: distinct by key, ascending by time, ties
	// ordered by source then name.
	Events []event.Event

	// Reports has one entry per configured source, in configuration order.
	Reports []SourceReport
}

// Degraded returns the reports of sources that failed during the pass.
func (r *Result) Degraded() []SourceReport {
	out := []SourceReport{}
	for _, rep := range r.Reports {
		if rep.Status.Degraded() {
			out = append(out, rep)
		}
	}
	return out
}

// Record converts the result to its persisted run-history form.
func (r *Result) Record() store.RunRecord {
	sources := make([]store.SourceRun, len(r.Reports))
	for i, rep := range r.Reports {
		sources[i] = store.SourceRun{
			Source:     rep.Source,
			Status:     string(rep.Status),
			Since:      rep.Since,
			Fetched:    rep.Fetched,
			Inserted:   rep.Inserted,
			Duplicates: rep.Duplicates,
			Dropped:    rep.Dropped,
			Watermark:  rep.Watermark,
		}
		if rep.Err != nil {
			sources[i].Error = rep.Err.Error()
		}
	}
	return store.RunRecord{
		ID:         r.RunID,
		StartedAt:  r.StartedAt.UnixMilli(),
		FinishedAt: r.FinishedAt.UnixMilli(),
		EventCount: len(r.Events),
		Degraded:   len(r.Degraded()) > 0,
		Sources:    sources,
	}
}
