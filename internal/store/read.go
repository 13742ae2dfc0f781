package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/timetrace/internal/event"
)

// SelectSince returns all events of one source with time >= since.
// Results are ordered by time ASC, name ASC, id ASC so that reads are
// deterministic even for events sharing a timestamp.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) SelectSince(ctx context.Context, source string, since int64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, source, name, details
		FROM events
		WHERE source = ? AND time >= ?
		ORDER BY time ASC, name ASC, id ASC
	`, source, since)
	if err != nil {
		return nil, fmt.Errorf("query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Range selects stored events for reporting. Zero From/To leave that bound
// open; an empty Sources list matches every source.
type Range struct {
	From    int64
	To      int64
	Sources []string
}

// SelectRange returns events matching r, ordered by time ASC, source ASC,
// name ASC.
func (s *Store) SelectRange(ctx context.Context, r Range) ([]event.Event, error) {
	var (
		where []string
		args  []any
	)
	if r.From != 0 {
		where = append(where, "time >= ?")
		args = append(args, r.From)
	}
	if r.To != 0 {
		where = append(where, "time < ?")
		args = append(args, r.To)
	}
	if len(r.Sources) > 0 {
		placeholders := make([]string, len(r.Sources))
		for i, src := range r.Sources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		where = append(where, "source IN ("+strings.Join(placeholders, ",")+")")
	}

	query := `SELECT time, source, name, details FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time ASC, source ASC, name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// scanEvents drains rows into events. Always returns a non-nil slice on success.
func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	events := []event.Event{}
	for rows.Next() {
		var e event.Event
		var name string
		if err := rows.Scan(&e.Time, &e.Source, &name, &e.Details); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Name = event.Kind(name)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
