package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/event"
)

func ev(ms int64, source string, name event.Kind, details string) event.Event {
	return event.Event{Time: ms, Source: source, Name: name, Details: details}
}

func TestMerge_SortsAcrossBatches(t *testing.T) {
	os := []event.Event{ev(3000, "os", event.KindLogoff, ""), ev(1000, "os", event.KindBoot, "")}
	jira := []event.Event{ev(2000, "jira", event.KindIssueUpdated, "")}

	got := Merge(os, jira)

	require.Len(t, got, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, []int64{got[0].Time, got[1].Time, got[2].Time})
}

func TestMerge_DedupLastWriteWins(t *testing.T) {
	stored := []event.Event{ev(1000, "os", event.KindBoot, "stored")}
	fresh := []event.Event{ev(1000, "os", event.KindBoot, "fresh")}

	got := Merge(stored, fresh)

	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Details)
}

func TestMerge_SameTimeDifferentKeysKept(t *testing.T) {
	got := Merge(
		[]event.Event{ev(500, "os", event.KindLogon, ""), ev(1000, "os", event.KindBoot, "")},
		[]event.Event{ev(1000, "mac", event.KindBoot, ""), ev(1000, "os", event.KindLogon, "")},
	)

	require.Len(t, got, 4)
	assert.Equal(t, int64(500), got[0].Time)
	for _, e := range got[1:] {
		assert.Equal(t, int64(1000), e.Time)
	}

	seen := map[event.Key]bool{}
	for _, e := range got {
		assert.False(t, seen[e.Key()], "duplicate key %+v", e.Key())
		seen[e.Key()] = true
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge()
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Merge(nil, []event.Event{})
	assert.Empty(t, got)
}

func TestWindow(t *testing.T) {
	events := []event.Event{ev(1, "os", event.KindBoot, ""), ev(5, "os", event.KindLogon, ""), ev(9, "os", event.KindLogoff, "")}

	got := Window(events, 5)

	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].Time)
}

func TestGroupByDay(t *testing.T) {
	day1 := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC).UnixMilli()
	day1Late := time.Date(2025, 1, 6, 23, 30, 0, 0, time.UTC).UnixMilli()
	day3 := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC).UnixMilli()

	events := []event.Event{
		ev(day1, "os", event.KindBoot, ""),
		ev(day1Late, "os", event.KindShutdown, ""),
		ev(day3, "os", event.KindBoot, ""),
	}

	days := GroupByDay(events, time.UTC)
	require.Len(t, days, 2)
	assert.Len(t, days[0].Events, 2)
	assert.Equal(t, 8, days[1].Date.Day())

	// In UTC+2 the late event rolls over into the next day.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	days = GroupByDay(events, plus2)
	require.Len(t, days, 3)
	assert.Equal(t, 7, days[1].Date.Day())
}
