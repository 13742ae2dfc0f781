package testutil

import (
	"context"
	"sync"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/source"
)

// Response is what a StubSource returns for one Fetch call.
type Response struct {
	Events []event.Event
	Err    error
}

// StubSource is a scripted source.Source. Each Fetch consumes the next
// Response; once the script is exhausted the last Response repeats. An
// empty script returns no events.
//
// Thread-safety: safe for concurrent use via internal mutex.
type StubSource struct {
	mu        sync.Mutex
	name      string
	active    bool
	responses []Response
	calls     []FetchCall
}

// FetchCall records the arguments of one Fetch.
type FetchCall struct {
	Kinds []event.Kind
	Since int64
}

var _ source.Source = (*StubSource)(nil)

// NewStubSource creates an active source answering with responses in order.
func NewStubSource(name string, responses ...Response) *StubSource {
	return &StubSource{name: name, active: true, responses: responses}
}

// Name implements source.Source.
func (s *StubSource) Name() string { return s.name }

// IsActive implements source.Source.
func (s *StubSource) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive toggles IsActive.
func (s *StubSource) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// Push appends responses to the script.
func (s *StubSource) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Fetch implements source.Source. Events before since are filtered out, as
// a real source would. The Response error is returned unchanged, so tests
// control whether it is a *source.FetchError.
func (s *StubSource) Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, FetchCall{Kinds: kinds, Since: since})

	if len(s.responses) == 0 {
		return []event.Event{}, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}

	events := make([]event.Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		if e.Time >= since {
			events = append(events, e)
		}
	}
	return events, resp.Err
}

// Calls returns a copy of the recorded Fetch calls.
func (s *StubSource) Calls() []FetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FetchCall(nil), s.calls...)
}

// FetchFailure builds the *source.FetchError a failing source would return.
func FetchFailure(name string, cause error) *source.FetchError {
	return &source.FetchError{Source: name, Cause: cause}
}
