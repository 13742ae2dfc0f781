// Package watermark tracks per-source synchronization progress.
//
// A watermark is the latest event time (epoch ms) that a source has
// successfully delivered into the store. It is kept as the integer
// property "<source>.lastFetchTime" and only ever moves forward.
package watermark

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/timetrace/internal/store"
)

// DefaultLookback bounds the first fetch of a source with no watermark, and
// the window of stored history re-presented on every pass.
const DefaultLookback = 7 * 24 * time.Hour

// Suffix is appended to a source name to form its property name.
const Suffix = ".lastFetchTime"

// PropertyStore is the subset of the event store the watermark layer needs.
// Implemented by store.Store.
type PropertyStore interface {
	GetProperty(ctx context.Context, name string) (store.Property, bool, error)
	AdvanceIntProperty(ctx context.Context, name string, candidate int64) (bool, error)
	ListProperties(ctx context.Context, suffix string) ([]store.Property, error)
}

// Store maps source names to their last fetch time.
type Store struct {
	props PropertyStore
}

// New returns a watermark store backed by props.
func New(props PropertyStore) *Store {
	return &Store{props: props}
}

// PropertyName returns the property key holding source's watermark.
func PropertyName(source string) string {
	return source + Suffix
}

// Get returns the stored watermark. ok is false when the source has never
// been synced.
func (w *Store) Get(ctx context.Context, source string) (ms int64, ok bool, err error) {
	p, found, err := w.props.GetProperty(ctx, PropertyName(source))
	if err != nil {
		return 0, false, fmt.Errorf("get watermark %s: %w", source, err)
	}
	if !found {
		return 0, false, nil
	}
	v, isInt := p.Int64()
	if !isInt {
		return 0, false, fmt.Errorf("get watermark %s: property has type %s, want integer", source, p.Type)
	}
	return v, true, nil
}

// Advance moves the watermark to candidate if candidate is later than the
// stored value or no value exists. It never moves the watermark backwards.
// Returns true when the stored value changed.
func (w *Store) Advance(ctx context.Context, source string, candidate int64) (bool, error) {
	advanced, err := w.props.AdvanceIntProperty(ctx, PropertyName(source), candidate)
	if err != nil {
		return false, fmt.Errorf("advance watermark %s: %w", source, err)
	}
	return advanced, nil
}

// Bound is the resolved start of a source's next fetch.
type Bound struct {
	// Since is the inclusive lower time bound for the fetch.
	Since int64

	// Watermark is the stored value; meaningful only when Stored is true.
	Watermark int64
	Stored    bool
}

// Resolve computes the start bound for the next fetch: the stored
// watermark, or now minus lookback when the source has never been synced.
func (w *Store) Resolve(ctx context.Context, source string, now time.Time, lookback time.Duration) (Bound, error) {
	ms, ok, err := w.Get(ctx, source)
	if err != nil {
		return Bound{}, err
	}
	if !ok {
		return Bound{Since: now.Add(-lookback).UnixMilli()}, nil
	}
	return Bound{Since: ms, Watermark: ms, Stored: true}, nil
}

// All returns every stored watermark keyed by source name.
func (w *Store) All(ctx context.Context) (map[string]int64, error) {
	props, err := w.props.ListProperties(ctx, Suffix)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}

	out := make(map[string]int64, len(props))
	for _, p := range props {
		v, ok := p.Int64()
		if !ok {
			continue
		}
		out[strings.TrimSuffix(p.Name, Suffix)] = v
	}
	return out, nil
}
