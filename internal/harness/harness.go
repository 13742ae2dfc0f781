package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/source"
	"github.com/roach88/timetrace/internal/store"
	"github.com/roach88/timetrace/internal/testutil"
	"github.com/roach88/timetrace/internal/watermark"
)

// Harness holds the fixtures of one scenario execution.
type Harness struct {
	scenario *Scenario
	store    *testutil.FaultyStore
	clock    *testutil.ManualClock
	sync     *engine.Synchronizer
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store in its own temp directory, so
// scenarios never observe each other's rows or watermarks. The clock starts
// at scenario.Now and run IDs are "run-1", "run-2", and so on.
//
// Execution flow:
//  1. Open a fresh store and insert the seed rows and watermarks
//  2. Build one scripted source per scenario source
//  3. For each pass, arm that pass's faults, sync, and record a trace
//  4. Evaluate assertions against the traces and the final store
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "timetrace-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "timetrace.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed(ctx, st, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}
	marks := watermark.New(st)
	for name, ms := range scenario.Watermarks {
		if _, err := marks.Advance(ctx, name, int64(ms)); err != nil {
			return nil, fmt.Errorf("failed to seed watermark: %w", err)
		}
	}

	sources := make([]source.Source, len(scenario.Sources))
	for i, spec := range scenario.Sources {
		sources[i] = stubFor(spec)
	}

	h := &Harness{
		scenario: scenario,
		store:    testutil.NewFaultyStore(st),
		clock:    testutil.NewManualClock(scenario.Now.UTC()),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithRunIDs(engine.NewFixedGenerator(runIDs(scenario.Passes)...)),
	}
	if scenario.Lookback > 0 {
		opts = append(opts, engine.WithLookback(scenario.Lookback))
	}
	if len(scenario.Kinds) > 0 {
		opts = append(opts, engine.WithKinds(scenario.Kinds...))
	}
	h.sync, err = engine.New(h.store, sources, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}

	result := NewResult()
	for pass := 1; pass <= scenario.Passes; pass++ {
		if pass > 1 {
			h.clock.Advance(scenario.Step)
		}
		h.armFaults(pass)
		result.Passes = append(result.Passes, h.runPass(ctx, pass))
	}
	h.store.Heal()

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) armFaults(pass int) {
	h.store.Heal()
	for _, f := range h.scenario.Faults {
		if f.Pass == 0 || f.Pass == pass {
			h.store.Fail(faultOps[f.Op], f.Source, errors.New(f.Error))
		}
	}
}

func (h *Harness) runPass(ctx context.Context, pass int) PassTrace {
	trace := PassTrace{Pass: pass, Merged: []string{}}

	res, err := h.sync.Sync(ctx)
	if err != nil {
		trace.Error = string(engine.Code(err))
		if trace.Error == "" {
			trace.Error = err.Error()
		}
		return trace
	}

	trace.RunID = res.RunID
	for _, rep := range res.Reports {
		st := SourceTrace{
			Source:     rep.Source,
			Status:     string(rep.Status),
			Fetched:    rep.Fetched,
			Inserted:   rep.Inserted,
			Duplicates: rep.Duplicates,
			Dropped:    rep.Dropped,
			Error:      string(engine.Code(rep.Err)),
		}
		if rep.Since != 0 {
			st.Since = formatTime(rep.Since)
		}
		if rep.Watermark != 0 {
			st.Watermark = formatTime(rep.Watermark)
		}
		trace.Sources = append(trace.Sources, st)
	}
	trace.events = res.Events
	for _, e := range res.Events {
		trace.Merged = append(trace.Merged, e.String())
	}

	h.logger.Info("scenario pass completed",
		"scenario", h.scenario.Name,
		"pass", pass,
		"events", len(res.Events),
	)
	return trace
}

func seed(ctx context.Context, st *store.Store, rows []StoredEvent) error {
	if len(rows) == 0 {
		return nil
	}
	events := make([]event.Event, len(rows))
	for i, r := range rows {
		events[i] = event.Event{
			Time:    int64(r.Time),
			Source:  r.Source,
			Name:    r.Name,
			Details: r.Details,
		}
	}
	_, err := st.InsertBatch(ctx, events)
	return err
}

// stubFor scripts a StubSource from spec. Error responses become
// *source.FetchError values, partial ones keeping their events.
func stubFor(spec SourceSpec) *testutil.StubSource {
	responses := make([]testutil.Response, len(spec.Responses))
	for i, r := range spec.Responses {
		events := make([]event.Event, len(r.Events))
		for j, e := range r.Events {
			events[j] = event.Event{Time: int64(e.Time), Name: e.Name, Details: e.Details}
		}
		resp := testutil.Response{Events: events}
		if r.Error != "" {
			resp.Err = &source.FetchError{
				Source:  spec.Name,
				Cause:   errors.New(r.Error),
				Partial: r.Partial,
			}
			if !r.Partial {
				resp.Events = nil
			}
		}
		responses[i] = resp
	}
	stub := testutil.NewStubSource(spec.Name, responses...)
	stub.SetActive(!spec.Inactive)
	return stub
}

func runIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}
	return ids
}

func formatTime(ms int64) string {
	return event.ToTime(ms).Format(time.RFC3339Nano)
}
