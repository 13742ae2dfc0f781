package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/timetrace/internal/event"
)

// Source is a platform- or service-specific event producer.
//
// Implementations must be safe for use from the synchronizer's per-source
// goroutine; the synchronizer never calls one source concurrently with
// itself.
type Source interface {
	// Name is the stable identifier used as the storage partition key.
	// Lowercase, no whitespace.
	Name() string

	// IsActive reports whether the source should take part in the current
	// pass (platform match, credentials present). Side-effect free.
	IsActive() bool

	// Fetch returns events with time >= since, restricted to kinds (all
	// supported kinds when kinds is empty). No results is an empty slice,
	// not an error. Returned order is unspecified.
	//
	// Failures are reported as *FetchError. A partial failure returns the
	// events that were read together with a FetchError whose Partial field
	// is set.
	Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error)
}

// FetchError reports a transport, subprocess, or parse failure while
// extracting events from a source.
type FetchError struct {
	Source string

	// Kind is set when the failure is specific to one event kind.
	Kind event.Kind

	// Partial is true when some kinds were fetched successfully.
	Partial bool

	Cause error
}

func (e *FetchError) Error() string {
	prefix := "fetch " + e.Source
	if e.Kind != "" {
		prefix += "/" + string(e.Kind)
	}
	if e.Partial {
		prefix += " (partial)"
	}
	return fmt.Sprintf("%s: %v", prefix, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// selectKinds intersects requested with supported, preserving the order of
// supported. An empty request selects every supported kind.
func selectKinds(supported, requested []event.Kind) []event.Kind {
	if len(requested) == 0 {
		out := make([]event.Kind, len(supported))
		copy(out, supported)
		return out
	}
	want := make(map[event.Kind]bool, len(requested))
	for _, k := range requested {
		want[k] = true
	}
	var out []event.Kind
	for _, k := range supported {
		if want[k] {
			out = append(out, k)
		}
	}
	return out
}

// kindFailure records one kind's fetch error inside a multi-kind fetch.
type kindFailure struct {
	kind event.Kind
	err  error
}

// collectFailures turns per-kind failures into the error a Fetch returns.
// Returns nil when nothing failed.
func collectFailures(source string, attempted int, failures []kindFailure) error {
	if len(failures) == 0 {
		return nil
	}
	if len(failures) == 1 {
		return &FetchError{
			Source:  source,
			Kind:    failures[0].kind,
			Partial: attempted > 1,
			Cause:   failures[0].err,
		}
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = fmt.Errorf("%s: %w", f.kind, f.err)
	}
	return &FetchError{
		Source:  source,
		Partial: len(failures) < attempted,
		Cause:   errors.Join(errs...),
	}
}

// Registry is a named set of sources. Registering a source whose name is
// already present replaces the old one, so reconfiguring a source never
// produces duplicates.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	sources []Source
}

// NewRegistry creates a registry holding the given sources.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s, replacing any source with the same name in place.
func (r *Registry) Register(s Source) error {
	if err := event.ValidSourceName(s.Name()); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.sources {
		if existing.Name() == s.Name() {
			r.sources[i] = s
			return nil
		}
	}
	r.sources = append(r.sources, s)
	return nil
}

// Remove drops the source with the given name. Returns false if absent.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.sources {
		if existing.Name() == name {
			r.sources = append(r.sources[:i], r.sources[i+1:]...)
			return true
		}
	}
	return false
}

// Sources returns a snapshot of the registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}
