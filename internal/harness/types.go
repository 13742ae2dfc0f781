package harness

import "github.com/roach88/timetrace/internal/event"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Passes has one trace per sync pass, in order.
	Passes []PassTrace `json:"passes"`

	// Errors holds assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// PassTrace records one sync pass. It is the unit of golden comparison, so
// every field is deterministic under a pinned clock and fixed run IDs.
type PassTrace struct {
	Pass    int           `json:"pass"`
	RunID   string        `json:"run_id,omitempty"`
	Error   string        `json:"error,omitempty"`
	Sources []SourceTrace `json:"sources,omitempty"`
	Merged  []string      `json:"merged"`

	events []event.Event
}

// SourceTrace records one source branch within a pass.
type SourceTrace struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Since      string `json:"since,omitempty"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Dropped    int    `json:"dropped,omitempty"`
	Watermark  string `json:"watermark,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Passes: []PassTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// pass returns the trace of 1-based pass n, or the last pass when n is 0.
func (r *Result) pass(n int) (PassTrace, bool) {
	if len(r.Passes) == 0 {
		return PassTrace{}, false
	}
	if n == 0 {
		return r.Passes[len(r.Passes)-1], true
	}
	if n < 1 || n > len(r.Passes) {
		return PassTrace{}, false
	}
	return r.Passes[n-1], true
}
