package store

import (
	"context"
	"fmt"

	"github.com/roach88/timetrace/internal/event"
)

// HealthReport lists integrity findings. A healthy store has all counts zero.
type HealthReport struct {
	// InvalidTimes counts events older than event.MinValidTime, which
	// usually means seconds were stored instead of milliseconds.
	InvalidTimes int

	// DuplicateKeys counts dedup keys that occur more than once.
	DuplicateKeys int

	// UntypedWatermarks counts watermark properties not stored as integers.
	UntypedWatermarks int
}

// Healthy reports whether no findings were recorded.
func (h HealthReport) Healthy() bool {
	return h.InvalidTimes == 0 && h.DuplicateKeys == 0 && h.UntypedWatermarks == 0
}

// CheckHealth runs read-only integrity checks over the store.
func (s *Store) CheckHealth(ctx context.Context, watermarkSuffix string) (HealthReport, error) {
	var h HealthReport

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE time < ?
	`, event.MinValidTime).Scan(&h.InvalidTimes)
	if err != nil {
		return HealthReport{}, fmt.Errorf("check invalid times: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM events
			GROUP BY time, name, source
			HAVING COUNT(*) > 1
		)
	`).Scan(&h.DuplicateKeys)
	if err != nil {
		return HealthReport{}, fmt.Errorf("check duplicate keys: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM db_properties
		WHERE substr(name, -length(?)) = ? AND type != ?
	`, watermarkSuffix, watermarkSuffix, int(PropertyInteger)).Scan(&h.UntypedWatermarks)
	if err != nil {
		return HealthReport{}, fmt.Errorf("check watermark types: %w", err)
	}

	return h, nil
}
