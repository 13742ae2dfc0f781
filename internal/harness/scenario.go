package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/source"
	"github.com/roach88/timetrace/internal/testutil"
)

// Scenario is one synchronizer test case.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Now is the clock reading at the first pass.
	Now time.Time `yaml:"now"`

	// Lookback overrides the default 7-day window.
	Lookback time.Duration `yaml:"lookback,omitempty"`

	// Step is how far the clock moves between passes. Default one minute.
	Step time.Duration `yaml:"step,omitempty"`

	// Passes is the number of sync passes to run. Default one.
	Passes int `yaml:"passes,omitempty"`

	// Kinds restricts fetches, as the kinds config option does.
	Kinds []event.Kind `yaml:"kinds,omitempty"`

	Seed []StoredEvent `yaml:"seed,omitempty"`

	// Watermarks pre-sets per-source watermarks, as if earlier passes had
	// run.
	Watermarks map[string]source.ReplayTime `yaml:"watermarks,omitempty"`

	Sources    []SourceSpec  `yaml:"sources"`
	Faults     []Fault       `yaml:"faults,omitempty"`
	Assertions []Assertion   `yaml:"assertions"`
}

// StoredEvent is a row present in the store before the first pass.
type StoredEvent struct {
	Source  string            `yaml:"source"`
	Time    source.ReplayTime `yaml:"time"`
	Name    event.Kind        `yaml:"name"`
	Details string            `yaml:"details,omitempty"`
}

// SourceSpec scripts one source.
type SourceSpec struct {
	Name      string         `yaml:"name"`
	Inactive  bool           `yaml:"inactive,omitempty"`
	Responses []ResponseSpec `yaml:"responses,omitempty"`
}

// ResponseSpec is one scripted fetch result.
type ResponseSpec struct {
	Events []source.ReplayEvent `yaml:"events,omitempty"`

	// Error makes the fetch fail with a FetchError carrying this message.
	Error string `yaml:"error,omitempty"`

	// Partial marks Error as a partial failure; Events are still returned.
	Partial bool `yaml:"partial,omitempty"`
}

// Fault arms a store failure for one pass (or every pass when Pass is 0).
type Fault struct {
	Pass   int    `yaml:"pass,omitempty"`
	Op     string `yaml:"op"`
	Source string `yaml:"source,omitempty"`
	Error  string `yaml:"error"`
}

// Assertion checks the outcome of a scenario. See the package
// documentation for the supported types.
type Assertion struct {
	Type   string             `yaml:"type"`
	Pass   int                `yaml:"pass,omitempty"`
	Source string             `yaml:"source,omitempty"`
	Status string             `yaml:"status,omitempty"`
	Count  *int               `yaml:"count,omitempty"`
	Equals *source.ReplayTime `yaml:"equals,omitempty"`
	Absent bool               `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertWatermark    = "watermark"
	AssertStatus       = "status"
	AssertMergedCount  = "merged_count"
	AssertStoredCount  = "stored_count"
	AssertNoDuplicates = "no_duplicates"
	AssertMergedSorted = "merged_sorted"
)

var faultOps = map[string]testutil.Op{
	"ping":         testutil.OpPing,
	"exists":       testutil.OpExists,
	"insert":       testutil.OpInsert,
	"select":       testutil.OpSelect,
	"get_property": testutil.OpGetProperty,
	"advance":      testutil.OpAdvance,
	"write_run":    testutil.OpWriteRun,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.Passes == 0 {
		s.Passes = 1
	}
	if s.Step == 0 {
		s.Step = time.Minute
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Now.IsZero() {
		return fmt.Errorf("now is required")
	}
	if s.Passes < 0 {
		return fmt.Errorf("passes must be positive, got %d", s.Passes)
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, src := range s.Sources {
		if err := event.ValidSourceName(src.Name); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	for i, e := range s.Seed {
		if err := event.ValidSourceName(e.Source); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if !e.Name.Valid() {
			return fmt.Errorf("seed[%d]: unknown event kind %q", i, e.Name)
		}
	}
	for name := range s.Watermarks {
		if err := event.ValidSourceName(name); err != nil {
			return fmt.Errorf("watermarks: %w", err)
		}
	}
	for i, f := range s.Faults {
		if _, ok := faultOps[f.Op]; !ok {
			return fmt.Errorf("faults[%d]: unknown op %q", i, f.Op)
		}
		if f.Pass < 0 || f.Pass > s.Passes {
			return fmt.Errorf("faults[%d]: pass %d out of range 1..%d", i, f.Pass, s.Passes)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, s.Passes); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, passes int) error {
	if a.Pass < 0 || a.Pass > passes {
		return fmt.Errorf("pass %d out of range 1..%d", a.Pass, passes)
	}
	switch a.Type {
	case AssertWatermark:
		if a.Source == "" {
			return fmt.Errorf("watermark requires source")
		}
		if (a.Equals == nil) == !a.Absent {
			return fmt.Errorf("watermark requires exactly one of equals or absent")
		}
	case AssertStatus:
		if a.Source == "" || a.Status == "" {
			return fmt.Errorf("status requires source and status")
		}
	case AssertMergedCount, AssertStoredCount:
		if a.Count == nil {
			return fmt.Errorf("%s requires count", a.Type)
		}
	case AssertNoDuplicates, AssertMergedSorted:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
