// Package merge combines per-source event batches into one deduplicated,
// time-ordered view.
package merge

import (
	"sort"
	"time"

	"github.com/roach88/timetrace/internal/event"
)

// Merge unions batches by dedup key and returns the result sorted ascending
// by time. When two batches carry the same key the later batch wins, so
// callers pass stored history first and fresh events last.
//
// Events sharing a timestamp are ordered by source, then name. The order is
// not meaningful but keeps output reproducible.
func Merge(batches ...[]event.Event) []event.Event {
	size := 0
	for _, b := range batches {
		size += len(b)
	}

	index := make(map[event.Key]int, size)
	out := make([]event.Event, 0, size)
	for _, batch := range batches {
		for _, e := range batch {
			k := e.Key()
			if i, ok := index[k]; ok {
				out[i] = e
				continue
			}
			index[k] = len(out)
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Name < b.Name
	})

	return out
}

// Window returns the events with time >= from. The input order is kept.
func Window(events []event.Event, from int64) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if e.Time >= from {
			out = append(out, e)
		}
	}
	return out
}

// Day is one calendar day of a merged view.
type Day struct {
	Date   time.Time
	Events []event.Event
}

// GroupByDay splits a time-ordered event slice into calendar days in loc.
// Days are returned in ascending order; days without events are omitted.
func GroupByDay(events []event.Event, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}

	var days []Day
	for _, e := range events {
		t := e.At().In(loc)
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Events = append(days[n-1].Events, e)
			continue
		}
		days = append(days, Day{Date: date, Events: []event.Event{e}})
	}
	return days
}
