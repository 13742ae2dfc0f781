package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/timetrace/internal/event"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTime is 2025-01-06T00:00:00Z in epoch milliseconds.
const testTime int64 = 1736121600000

// createTestEvent creates an event offset by ms from testTime.
func createTestEvent(source string, name event.Kind, offset int64) event.Event {
	return event.Event{
		Time:    testTime + offset,
		Source:  source,
		Name:    name,
		Details: "test " + string(name),
	}
}
