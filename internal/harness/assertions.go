package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/store"
	"github.com/roach88/timetrace/internal/watermark"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Merged is the merged view of the pass under test, if any.
	Merged []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Merged) > 0 {
		fmt.Fprintf(&buf, "\nMerged view:\n")
		for i, line := range e.Merged {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

// AssertionContext provides store access for assertions on final state.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

func assertWatermark(actx *AssertionContext, a Assertion) error {
	ms, ok, err := watermark.New(actx.Store).Get(actx.Ctx, a.Source)
	if err != nil {
		return fmt.Errorf("read watermark of %s: %w", a.Source, err)
	}

	actual := "absent"
	if ok {
		actual = formatTime(ms)
	}
	if a.Absent {
		if ok {
			return &AssertionError{Type: AssertWatermark, Expected: a.Source + " absent", Actual: actual}
		}
		return nil
	}
	if !ok || ms != int64(*a.Equals) {
		return &AssertionError{
			Type:     AssertWatermark,
			Expected: fmt.Sprintf("%s at %s", a.Source, formatTime(int64(*a.Equals))),
			Actual:   actual,
		}
	}
	return nil
}

func assertStatus(result *Result, a Assertion) error {
	pass, ok := result.pass(a.Pass)
	if !ok {
		return fmt.Errorf("status: pass %d did not run", a.Pass)
	}
	for _, src := range pass.Sources {
		if src.Source != a.Source {
			continue
		}
		if src.Status != a.Status {
			return &AssertionError{
				Type:     AssertStatus,
				Expected: fmt.Sprintf("%s %s in pass %d", a.Source, a.Status, pass.Pass),
				Actual:   src.Status,
			}
		}
		return nil
	}

	actual := "no report"
	if pass.Error != "" {
		actual = "pass aborted: " + pass.Error
	}
	return &AssertionError{
		Type:     AssertStatus,
		Expected: fmt.Sprintf("%s %s in pass %d", a.Source, a.Status, pass.Pass),
		Actual:   actual,
	}
}

func assertMergedCount(result *Result, a Assertion) error {
	pass, ok := result.pass(a.Pass)
	if !ok {
		return fmt.Errorf("merged_count: pass %d did not run", a.Pass)
	}

	count := 0
	for _, e := range pass.events {
		if a.Source == "" || e.Source == a.Source {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertMergedCount,
			Expected: fmt.Sprintf("%d events%s in pass %d", *a.Count, forSource(a.Source), pass.Pass),
			Actual:   fmt.Sprintf("%d events", count),
			Merged:   pass.Merged,
		}
	}
	return nil
}

func assertStoredCount(actx *AssertionContext, a Assertion) error {
	r := store.Range{}
	if a.Source != "" {
		r.Sources = []string{a.Source}
	}
	events, err := actx.Store.SelectRange(actx.Ctx, r)
	if err != nil {
		return fmt.Errorf("stored_count: %w", err)
	}
	if len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertStoredCount,
			Expected: fmt.Sprintf("%d rows%s", *a.Count, forSource(a.Source)),
			Actual:   fmt.Sprintf("%d rows", len(events)),
		}
	}
	return nil
}

func assertNoDuplicates(actx *AssertionContext) error {
	h, err := actx.Store.CheckHealth(actx.Ctx, watermark.Suffix)
	if err != nil {
		return fmt.Errorf("no_duplicates: %w", err)
	}
	if h.DuplicateKeys > 0 {
		return &AssertionError{
			Type:     AssertNoDuplicates,
			Expected: "every (time, name, source) stored once",
			Actual:   fmt.Sprintf("%d keys stored more than once", h.DuplicateKeys),
		}
	}
	return nil
}

func assertMergedSorted(result *Result, a Assertion) error {
	pass, ok := result.pass(a.Pass)
	if !ok {
		return fmt.Errorf("merged_sorted: pass %d did not run", a.Pass)
	}

	seen := make(map[event.Key]bool, len(pass.events))
	for i, e := range pass.events {
		if seen[e.Key()] {
			return &AssertionError{
				Type:     AssertMergedSorted,
				Expected: "distinct keys",
				Actual:   fmt.Sprintf("%s repeated at position %d", e, i+1),
				Merged:   pass.Merged,
			}
		}
		seen[e.Key()] = true

		if i > 0 && less(e, pass.events[i-1]) {
			return &AssertionError{
				Type:     AssertMergedSorted,
				Expected: "ascending by time, then source, then name",
				Actual:   fmt.Sprintf("%s before %s", pass.events[i-1], e),
				Merged:   pass.Merged,
			}
		}
	}
	return nil
}

func less(a, b event.Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Name < b.Name
}

func forSource(src string) string {
	if src == "" {
		return ""
	}
	return " from " + src
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for watermark and stored-row
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatus:
			err = assertStatus(result, assertion)
		case AssertMergedCount:
			err = assertMergedCount(result, assertion)
		case AssertMergedSorted:
			err = assertMergedSorted(result, assertion)
		case AssertWatermark, AssertStoredCount, AssertNoDuplicates:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertWatermark:
				err = assertWatermark(actx, assertion)
			case AssertStoredCount:
				err = assertStoredCount(actx, assertion)
			default:
				err = assertNoDuplicates(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
