package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/merge"
	"github.com/roach88/timetrace/internal/source"
	"github.com/roach88/timetrace/internal/store"
	"github.com/roach88/timetrace/internal/watermark"
)

// TracerName identifies spans emitted by the synchronizer.
const TracerName = "github.com/roach88/timetrace/internal/engine"

// Store is the persistence a Synchronizer needs. Implemented by
// *store.Store.
//
// The store's uniqueness constraint on (time, name, source) is the only
// concurrency control between branches; the engine takes no locks.
type Store interface {
	watermark.PropertyStore

	Ping(ctx context.Context) error
	ExistsByKey(ctx context.Context, key event.Key) (bool, error)
	InsertBatch(ctx context.Context, events []event.Event) (int, error)
	SelectSince(ctx context.Context, source string, since int64) ([]event.Event, error)
	WriteRun(ctx context.Context, run store.RunRecord) error
}

// Recorder observes pass outcomes. Implemented by metrics.Recorder.
type Recorder interface {
	ObserveSource(report SourceReport)
	ObservePass(result *Result)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSource(SourceReport) {}
func (nopRecorder) ObservePass(*Result)        {}

// Synchronizer runs passes over a fixed set of sources.
//
// Thread-safety: Sync may be called from any goroutine, but overlapping
// passes are not coordinated; callers serialize them.
type Synchronizer struct {
	store    Store
	marks    *watermark.Store
	sources  []source.Source
	clock    Clock
	lookback time.Duration
	kinds    []event.Kind
	logger   *slog.Logger
	recorder Recorder
	runIDs   RunIDGenerator
	tracer   trace.Tracer
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithLookback sets the first-fetch lookback and the read-back window.
// Default: watermark.DefaultLookback (7 days).
func WithLookback(d time.Duration) Option {
	return func(s *Synchronizer) { s.lookback = d }
}

// WithKinds restricts every fetch to kinds. Default: all kinds.
func WithKinds(kinds ...event.Kind) Option {
	return func(s *Synchronizer) {
		s.kinds = append([]event.Kind(nil), kinds...)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithRecorder sets the metrics recorder. Default: none.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) { s.recorder = r }
}

// WithRunIDs sets the run ID generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(s *Synchronizer) { s.runIDs = g }
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Synchronizer) { s.tracer = t }
}

// New creates a Synchronizer over st and sources.
//
// The sources slice is copied; later changes to the caller's slice do not
// affect the synchronizer. Source names must be valid and unique.
func New(st Store, sources []source.Source, opts ...Option) (*Synchronizer, error) {
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		name := src.Name()
		if err := event.ValidSourceName(name); err != nil {
			return nil, fmt.Errorf("new synchronizer: %w", err)
		}
		if seen[name] {
			return nil, fmt.Errorf("new synchronizer: duplicate source %q", name)
		}
		seen[name] = true
	}

	s := &Synchronizer{
		store:    st,
		marks:    watermark.New(st),
		sources:  append([]source.Source(nil), sources...),
		clock:    SystemClock{},
		lookback: watermark.DefaultLookback,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		runIDs:   UUIDv7Generator{},
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lookback <= 0 {
		return nil, fmt.Errorf("new synchronizer: lookback must be positive, got %s", s.lookback)
	}
	return s, nil
}

// Sources returns the configured sources in order.
func (s *Synchronizer) Sources() []source.Source {
	return append([]source.Source(nil), s.sources...)
}

// Sync runs one pass and returns the merged view.
//
// Individual source failures never fail the pass; they are reported on the
// result. The only error is a *SyncError with ErrCodeStoreUnavailable when
// the store cannot be reached, in which case no merge is attempted.
func (s *Synchronizer) Sync(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "sync")
	defer span.End()

	started := s.clock.Now()
	runID := s.runIDs.Generate()
	span.SetAttributes(attribute.String("run.id", runID))
	log := s.logger.With("run", runID)

	if err := s.store.Ping(ctx); err != nil {
		serr := newSyncError(ErrCodeStoreUnavailable, "", err)
		span.RecordError(serr)
		span.SetStatus(codes.Error, serr.Error())
		log.Error("sync aborted", "error", err)
		return nil, serr
	}

	windowStart := started.Add(-s.lookback).UnixMilli()
	reports := make([]SourceReport, len(s.sources))
	contributions := make([][]event.Event, len(s.sources))

	// Branches report failures on their SourceReport and always return nil,
	// so one source never cancels another.
	var g errgroup.Group
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			reports[i], contributions[i] = s.syncSource(ctx, src, started, windowStart)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: s.clock.Now(),
		Events:     merge.Merge(contributions...),
		Reports:    reports,
	}

	degraded := len(res.Degraded())
	span.SetAttributes(
		attribute.Int("events", len(res.Events)),
		attribute.Int("degraded", degraded),
	)
	log.Info("sync complete",
		"sources", len(reports),
		"degraded", degraded,
		"events", len(res.Events),
	)

	if err := s.store.WriteRun(ctx, res.Record()); err != nil {
		log.Warn("record run failed", "error", err)
	}
	s.recorder.ObservePass(res)
	return res, nil
}

// syncSource runs one branch. It returns the branch report and the events
// the source contributes to the merged view.
func (s *Synchronizer) syncSource(ctx context.Context, src source.Source, now time.Time, windowStart int64) (SourceReport, []event.Event) {
	name := src.Name()
	ctx, span := s.tracer.Start(ctx, "sync.source",
		trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	began := s.clock.Now()
	log := s.logger.With("source", name)
	report := SourceReport{Source: name, Status: StatusOK}

	finish := func(events []event.Event) (SourceReport, []event.Event) {
		report.Duration = s.clock.Now().Sub(began)
		span.SetAttributes(
			attribute.String("status", string(report.Status)),
			attribute.Int("fetched", report.Fetched),
			attribute.Int("inserted", report.Inserted),
		)
		if report.Err != nil {
			span.RecordError(report.Err)
			span.SetStatus(codes.Error, string(report.Status))
		}
		s.recorder.ObserveSource(report)
		return report, events
	}

	if !src.IsActive() {
		report.Status = StatusInactive
		log.Debug("source inactive")
		return finish([]event.Event{})
	}

	fresh, abort := s.ingest(ctx, src, now, &report, log)
	if abort {
		return finish([]event.Event{})
	}

	stored, err := s.store.SelectSince(ctx, name, windowStart)
	if err != nil {
		report.fail(StatusReadFailed, newSyncError(ErrCodeStoreReadFailed, name, err))
		log.Error("window read failed", "error", err)
		return finish([]event.Event{})
	}

	contribution := append(stored, merge.Window(fresh, windowStart)...)

	log.Info("source synced",
		"status", report.Status,
		"since", report.Since,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"watermark", report.Watermark,
	)
	return finish(contribution)
}

// ingest runs the fetch, insert, and watermark steps of a branch and
// returns the events it inserted. A watermark read failure skips all three
// but the caller still reads stored history back; abort reports a failed
// existence check, after which the branch contributes nothing.
func (s *Synchronizer) ingest(ctx context.Context, src source.Source, now time.Time, report *SourceReport, log *slog.Logger) (fresh []event.Event, abort bool) {
	name := src.Name()
	bound, err := s.marks.Resolve(ctx, name, now, s.lookback)
	if err != nil {
		report.fail(StatusReadFailed, newSyncError(ErrCodeStoreReadFailed, name, err))
		log.Error("read watermark failed", "error", err)
		return nil, false
	}
	report.Since = bound.Since
	if bound.Stored {
		report.Watermark = bound.Watermark
	}

	fetched, fetchErr := src.Fetch(ctx, s.kinds, bound.Since)
	if fetchErr != nil {
		report.fail(StatusFetchFailed, newSyncError(ErrCodeFetchFailed, name, fetchErr))
		log.Warn("fetch failed", "since", bound.Since, "error", fetchErr)
		if !partial(fetchErr) {
			fetched = nil
		}
	}

	batch, dropped := s.prepare(name, fetched)
	report.Fetched = len(batch)
	report.Dropped = dropped
	if dropped > 0 {
		log.Warn("dropped invalid events", "dropped", dropped)
	}

	fresh = make([]event.Event, 0, len(batch))
	for _, e := range batch {
		exists, err := s.store.ExistsByKey(ctx, e.Key())
		if err != nil {
			report.fail(StatusReadFailed, newSyncError(ErrCodeStoreReadFailed, name, err))
			log.Error("existence check failed", "error", err)
			return nil, true
		}
		if !exists {
			fresh = append(fresh, e)
		}
	}
	report.Duplicates = len(batch) - len(fresh)

	if len(fresh) > 0 {
		n, err := s.store.InsertBatch(ctx, fresh)
		if err != nil {
			report.fail(StatusWriteFailed, newSyncError(ErrCodeStoreWriteFailed, name, err))
			log.Error("insert failed", "events", len(fresh), "error", err)
			return nil, false
		}
		report.Inserted = n
		// Rows that lost a race with another writer count as duplicates.
		report.Duplicates += len(fresh) - n
	}

	// The candidate covers everything fetched, dropped events included, so
	// a source returning only unusable events still moves forward.
	if fetchErr == nil && len(fetched) > 0 {
		high := maxTime(fetched)
		advanced, err := s.marks.Advance(ctx, name, high)
		if err != nil {
			report.fail(StatusWriteFailed, newSyncError(ErrCodeStoreWriteFailed, name, err))
			log.Error("advance watermark failed", "watermark", high, "error", err)
		} else if advanced {
			report.Watermark = high
			report.Advanced = true
		}
	}
	return fresh, false
}

// prepare stamps and normalizes fetched events, drops invalid ones, and
// collapses duplicates within the batch. Returns the batch and the number
// of dropped events.
func (s *Synchronizer) prepare(name string, fetched []event.Event) ([]event.Event, int) {
	var allowed map[event.Kind]bool
	if len(s.kinds) > 0 {
		allowed = make(map[event.Kind]bool, len(s.kinds))
		for _, k := range s.kinds {
			allowed[k] = true
		}
	}

	out := make([]event.Event, 0, len(fetched))
	seen := make(map[event.Key]bool, len(fetched))
	dropped := 0
	for _, e := range fetched {
		e.Source = name
		e = e.Normalize()
		if !e.Name.Valid() || (allowed != nil && !allowed[e.Name]) {
			dropped++
			continue
		}
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		out = append(out, e)
	}
	return out, dropped
}

func partial(err error) bool {
	var fe *source.FetchError
	return errors.As(err, &fe) && fe.Partial
}

func maxTime(events []event.Event) int64 {
	high := events[0].Time
	for _, e := range events[1:] {
		if e.Time > high {
			high = e.Time
		}
	}
	return high
}
