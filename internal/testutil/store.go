package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/store"
)

// Op names a store operation that FaultyStore can fail.
type Op string

const (
	OpPing        Op = "ping"
	OpExists      Op = "exists"
	OpInsert      Op = "insert"
	OpSelect      Op = "select"
	OpGetProperty Op = "get_property"
	OpAdvance     Op = "advance"
	OpWriteRun    Op = "write_run"
)

type fault struct {
	op     Op
	source string
}

// OpenStore opens a store in a per-test temp directory, closed on cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "timetrace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// FaultyStore wraps a real store and fails selected operations on demand.
// Faults can target one source or, with an empty source, every call.
//
// Thread-safety: safe for concurrent use; the wrapped store serializes
// its own writes.
type FaultyStore struct {
	*store.Store

	mu     sync.Mutex
	faults map[fault]error
}

// NewFaultyStore wraps st with no faults armed.
func NewFaultyStore(st *store.Store) *FaultyStore {
	return &FaultyStore{Store: st, faults: make(map[fault]error)}
}

// Fail makes op return err for source ("" for all sources).
func (f *FaultyStore) Fail(op Op, source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[fault{op: op, source: source}] = err
}

// Heal disarms every fault.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[fault]error)
}

func (f *FaultyStore) check(op Op, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.faults[fault{op: op, source: source}]; ok {
		return err
	}
	return f.faults[fault{op: op}]
}

// propertySource extracts the source from a "<source>.<suffix>" property.
func propertySource(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func (f *FaultyStore) Ping(ctx context.Context) error {
	if err := f.check(OpPing, ""); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}

func (f *FaultyStore) ExistsByKey(ctx context.Context, key event.Key) (bool, error) {
	if err := f.check(OpExists, key.Source); err != nil {
		return false, err
	}
	return f.Store.ExistsByKey(ctx, key)
}

func (f *FaultyStore) InsertBatch(ctx context.Context, events []event.Event) (int, error) {
	if len(events) > 0 {
		if err := f.check(OpInsert, events[0].Source); err != nil {
			return 0, err
		}
	}
	return f.Store.InsertBatch(ctx, events)
}

func (f *FaultyStore) SelectSince(ctx context.Context, source string, since int64) ([]event.Event, error) {
	if err := f.check(OpSelect, source); err != nil {
		return nil, err
	}
	return f.Store.SelectSince(ctx, source, since)
}

func (f *FaultyStore) GetProperty(ctx context.Context, name string) (store.Property, bool, error) {
	if err := f.check(OpGetProperty, propertySource(name)); err != nil {
		return store.Property{}, false, err
	}
	return f.Store.GetProperty(ctx, name)
}

func (f *FaultyStore) AdvanceIntProperty(ctx context.Context, name string, candidate int64) (bool, error) {
	if err := f.check(OpAdvance, propertySource(name)); err != nil {
		return false, err
	}
	return f.Store.AdvanceIntProperty(ctx, name, candidate)
}

func (f *FaultyStore) WriteRun(ctx context.Context, run store.RunRecord) error {
	if err := f.check(OpWriteRun, ""); err != nil {
		return err
	}
	return f.Store.WriteRun(ctx, run)
}
