package source

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timetrace/internal/event"
)

// ReplayFile is the on-disk format read by Replay.
//
//	events:
//	  - time: 2025-01-06T08:00:00Z   # or epoch milliseconds
//	    name: boot
//	    details: recorded on the build host
type ReplayFile struct {
	Events []ReplayEvent `yaml:"events"`
}

// ReplayEvent is one recorded event.
type ReplayEvent struct {
	Time    ReplayTime `yaml:"time"`
	Name    event.Kind `yaml:"name"`
	Details string     `yaml:"details"`
}

// ReplayTime accepts epoch milliseconds or an RFC 3339 timestamp.
type ReplayTime int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *ReplayTime) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: time must be a scalar", node.Line)
	}
	if ms, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*t = ReplayTime(ms)
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: time %q is neither epoch milliseconds nor RFC 3339", node.Line, node.Value)
	}
	*t = ReplayTime(parsed.UnixMilli())
	return nil
}

// Replay serves events recorded in a YAML file. The file is re-read on every
// fetch so it can be appended to between passes.
type Replay struct {
	name string
	path string
}

// NewReplay creates a replay source named name reading path.
func NewReplay(name, path string) *Replay {
	if name == "" {
		name = "replay"
	}
	return &Replay{name: name, path: path}
}

// Name implements Source.
func (r *Replay) Name() string { return r.name }

// IsActive implements Source. Active when the file exists.
func (r *Replay) IsActive() bool {
	info, err := os.Stat(r.path)
	return err == nil && !info.IsDir()
}

// Fetch implements Source.
func (r *Replay) Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: r.name, Cause: err}
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, &FetchError{Source: r.name, Cause: err}
	}
	var file ReplayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &FetchError{Source: r.name, Cause: fmt.Errorf("parse %s: %w", r.path, err)}
	}

	want := make(map[event.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	events := make([]event.Event, 0, len(file.Events))
	for _, e := range file.Events {
		if int64(e.Time) < since {
			continue
		}
		if len(want) > 0 && !want[e.Name] {
			continue
		}
		events = append(events, event.Event{
			Time:    int64(e.Time),
			Name:    e.Name,
			Details: e.Details,
		})
	}
	return events, nil
}
