package store

import (
	"context"
	"fmt"

	"github.com/roach88/timetrace/internal/event"
)

// ExistsByKey reports whether an event with the given dedup key is stored.
func (s *Store) ExistsByKey(ctx context.Context, key event.Key) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE time = ? AND name = ? AND source = ?
	`, key.Time, string(key.Name), key.Source).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check event exists: %w", err)
	}
	return count > 0, nil
}

// InsertBatch inserts events in a single transaction and returns how many
// rows were actually written.
//
// Uses ON CONFLICT(time, name, source) DO NOTHING: an event whose dedup key
// is already stored counts as present, not as an error. Inserting the same
// batch twice leaves the table unchanged the second time.
func (s *Store) InsertBatch(ctx context.Context, events []event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (time, source, name, details)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(time, name, source) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert batch: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		result, err := stmt.ExecContext(ctx, e.Time, e.Source, string(e.Name), e.Details)
		if err != nil {
			return 0, fmt.Errorf("insert batch: insert %s: %w", e, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert batch: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert batch: commit: %w", err)
	}

	return inserted, nil
}
