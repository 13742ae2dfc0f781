package source

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/roach88/timetrace/internal/event"
)

// macQuery maps an event kind to a unified-log predicate.
type macQuery struct {
	kind      event.Kind
	predicate string
}

var macQueries = []macQuery{
	{event.KindBoot, `process == "kernel" AND eventMessage CONTAINS "Previous shutdown cause"`},
	{event.KindShutdown, `process == "kernel" AND eventMessage CONTAINS "SHUTDOWN_TIME"`},
	{event.KindLogon, `process == "loginwindow" AND eventMessage CONTAINS "sessionDidLogin"`},
	{event.KindLogoff, `process == "loginwindow" AND eventMessage CONTAINS "sessionDidLogout"`},
	{event.KindStandbyEnter, `process == "powerd" AND eventMessage CONTAINS "Entering Sleep"`},
	{event.KindStandbyExit, `process == "powerd" AND eventMessage CONTAINS "Wake from"`},
}

// macNoMatches is what `log show` prints when a predicate matches nothing.
const macNoMatches = "No matches found"

// Timestamp layouts emitted by `log show --style json`.
var macTimeLayouts = []string{
	"2006-01-02 15:04:05.000000-0700",
	"2006-01-02 15:04:05-0700",
	time.RFC3339Nano,
}

// rawMacEvent is one entry of `log show --style json` output.
type rawMacEvent struct {
	Timestamp        string `json:"timestamp"`
	EventMessage     string `json:"eventMessage"`
	ProcessImagePath string `json:"processImagePath,omitempty"`
	Subsystem        string `json:"subsystem,omitempty"`
	MessageType      string `json:"messageType,omitempty"`
}

// MacOS reads system activity from the macOS unified log.
type MacOS struct {
	name     string
	runner   Runner
	platform string
	loc      *time.Location
}

// MacOSOption configures a MacOS source.
type MacOSOption func(*MacOS)

// WithMacRunner overrides the command runner.
func WithMacRunner(r Runner) MacOSOption {
	return func(m *MacOS) { m.runner = r }
}

// WithMacPlatform overrides the detected GOOS.
func WithMacPlatform(goos string) MacOSOption {
	return func(m *MacOS) { m.platform = goos }
}

// WithMacLocation sets the zone used to format --start. `log show`
// interprets --start in the machine's local zone.
func WithMacLocation(loc *time.Location) MacOSOption {
	return func(m *MacOS) { m.loc = loc }
}

// NewMacOS creates a unified-log source named name ("mac" if empty).
func NewMacOS(name string, opts ...MacOSOption) *MacOS {
	if name == "" {
		name = "mac"
	}
	m := &MacOS{
		name:     name,
		runner:   ExecRunner{},
		platform: runtime.GOOS,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Source.
func (m *MacOS) Name() string { return m.name }

// IsActive implements Source. Active on darwin only.
func (m *MacOS) IsActive() bool { return m.platform == "darwin" }

// Fetch implements Source. One `log show` call per kind; a failing kind
// does not stop the others.
func (m *MacOS) Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error) {
	supported := make([]event.Kind, len(macQueries))
	for i, q := range macQueries {
		supported[i] = q.kind
	}
	selected := selectKinds(supported, kinds)

	start := time.UnixMilli(since).In(m.loc).Format("2006-01-02 15:04:05")

	var (
		events   []event.Event
		failures []kindFailure
	)
	for _, kind := range selected {
		if err := ctx.Err(); err != nil {
			failures = append(failures, kindFailure{kind: kind, err: err})
			continue
		}
		found, err := m.query(ctx, kind, macPredicate(kind), start, since)
		if err != nil {
			failures = append(failures, kindFailure{kind: kind, err: err})
			continue
		}
		events = append(events, found...)
	}

	if events == nil {
		events = []event.Event{}
	}
	return events, collectFailures(m.name, len(selected), failures)
}

func (m *MacOS) query(ctx context.Context, kind event.Kind, predicate, start string, since int64) ([]event.Event, error) {
	out, err := m.runner.Run(ctx, "log",
		"show",
		"--start", start,
		"--style", "json",
		"--predicate", predicate,
	)
	if err != nil {
		if outputContains(err, macNoMatches) {
			return nil, nil
		}
		return nil, err
	}
	return parseMacEvents(out, kind, since)
}

func macPredicate(kind event.Kind) string {
	for _, q := range macQueries {
		if q.kind == kind {
			return q.predicate
		}
	}
	return ""
}

// parseMacEvents converts `log show --style json` output (a JSON array)
// into events of the given kind at or after since. Empty output means no events.
func parseMacEvents(out []byte, kind event.Kind, since int64) ([]event.Event, error) {
	text := strings.TrimSpace(string(out))
	if text == "" || (strings.Contains(text, macNoMatches) && !strings.HasPrefix(text, "[")) {
		return nil, nil
	}

	var raw []rawMacEvent
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse log output: %w", err)
	}

	events := make([]event.Event, 0, len(raw))
	for _, r := range raw {
		ts, err := parseMacTime(r.Timestamp)
		if err != nil {
			return nil, err
		}
		// --start has whole-second precision.
		if ts.UnixMilli() < since {
			continue
		}
		details := r.EventMessage
		if details == "" {
			details = "No message"
		}
		events = append(events, event.Event{
			Time:    ts.UnixMilli(),
			Name:    kind,
			Details: details,
		})
	}
	return events, nil
}

func parseMacTime(s string) (time.Time, error) {
	for _, layout := range macTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse log timestamp %q", s)
}
