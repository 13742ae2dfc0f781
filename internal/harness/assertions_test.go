package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/event"
)

func count(n int) *int { return &n }

func tracedResult(events ...event.Event) *Result {
	pass := PassTrace{Pass: 1, Merged: []string{}, events: events}
	for _, e := range events {
		pass.Merged = append(pass.Merged, e.String())
	}
	pass.Sources = []SourceTrace{{Source: "mac", Status: "ok"}}
	r := NewResult()
	r.Passes = append(r.Passes, pass)
	return r
}

func TestAssertMergedSorted(t *testing.T) {
	boot := event.Event{Time: event.MinValidTime, Source: "mac", Name: event.KindBoot}
	logon := event.Event{Time: event.MinValidTime, Source: "mac", Name: event.KindLogon}
	jira := event.Event{Time: event.MinValidTime, Source: "jira", Name: event.KindIssueCreated}

	assert.NoError(t, assertMergedSorted(tracedResult(jira, boot, logon), Assertion{}))

	err := assertMergedSorted(tracedResult(boot, jira), Assertion{})
	var aerr *AssertionError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "ascending by time, then source, then name", aerr.Expected)

	err = assertMergedSorted(tracedResult(boot, boot), Assertion{})
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "distinct keys", aerr.Expected)
}

func TestAssertMergedCount_PerSource(t *testing.T) {
	r := tracedResult(
		event.Event{Time: event.MinValidTime, Source: "jira", Name: event.KindIssueCreated},
		event.Event{Time: event.MinValidTime, Source: "mac", Name: event.KindBoot},
	)

	assert.NoError(t, assertMergedCount(r, Assertion{Count: count(2)}))
	assert.NoError(t, assertMergedCount(r, Assertion{Source: "mac", Count: count(1)}))
	assert.Error(t, assertMergedCount(r, Assertion{Source: "windows", Count: count(1)}))
}

func TestAssertStatus_AbortedPass(t *testing.T) {
	r := NewResult()
	r.Passes = append(r.Passes, PassTrace{Pass: 1, Error: "STORE_UNAVAILABLE"})

	err := assertStatus(r, Assertion{Source: "mac", Status: "ok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass aborted: STORE_UNAVAILABLE")
}

func TestResultPass_Selection(t *testing.T) {
	r := NewResult()
	_, ok := r.pass(0)
	assert.False(t, ok)

	r.Passes = []PassTrace{{Pass: 1}, {Pass: 2}}
	last, ok := r.pass(0)
	require.True(t, ok)
	assert.Equal(t, 2, last.Pass)

	_, ok = r.pass(3)
	assert.False(t, ok)
}

func TestEvaluateAssertions_StoreRequired(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertNoDuplicates}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no_duplicates requires store context")
}
