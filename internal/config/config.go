// Package config loads timetrace settings.
//
// Settings come from a YAML file validated against an embedded CUE schema,
// then environment overrides (TIMETRACE_*). Command-line flags are applied
// last by the CLI.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/watermark"
)

//go:embed schema.cue
var schemaSrc string

// Source types.
const (
	TypeMacOS   = "macos"
	TypeWindows = "windows"
	TypeJira    = "jira"
	TypeReplay  = "replay"
)

// Config is the full timetrace configuration.
type Config struct {
	Database  string          `yaml:"database"`
	Lookback  time.Duration   `yaml:"lookback"`
	Kinds     []string        `yaml:"kinds"`
	Sources   []SourceConfig  `yaml:"sources"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SourceConfig configures one source. Fields beyond Type, Name, and
// Enabled apply to specific types.
type SourceConfig struct {
	Type    string `yaml:"type"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`

	// jira
	BaseURL  string        `yaml:"base_url"`
	Email    string        `yaml:"email"`
	APIToken string        `yaml:"api_token"`
	JQL      string        `yaml:"jql"`
	Timezone string        `yaml:"timezone"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`

	// replay
	Path string `yaml:"path"`
}

// IsEnabled reports whether the source takes part in passes. Sources are
// enabled unless explicitly disabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SourceName returns the configured name, or the type when unset.
func (s SourceConfig) SourceName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Type == TypeMacOS {
		return "mac"
	}
	return s.Type
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	// Listen is the address for /metrics in watch mode, e.g. ":9464".
	Listen string `yaml:"listen"`

	// Textfile, when set, receives the registry after every pass in the
	// node_exporter textfile format.
	Textfile string `yaml:"textfile"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultDir is where timetrace keeps its files, relative to the home
// directory.
const DefaultDir = ".timetrace"

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), DefaultDir, "config.yaml")
}

// Default returns the configuration used when no file exists: both OS log
// sources (each active only on its own platform) and a 7-day lookback.
func Default() *Config {
	return &Config{
		Database: filepath.Join(homeDir(), DefaultDir, "timetrace.db"),
		Lookback: watermark.DefaultLookback,
		Sources: []SourceConfig{
			{Type: TypeMacOS},
			{Type: TypeWindows},
		},
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Load reads the file at path and applies environment overrides. An empty
// path loads DefaultPath when it exists and Default otherwise.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		cfg := Default()
		if err := ApplyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse validates YAML data against the schema and decodes it over
// Default. Keys absent from the file keep their default values; a sources
// list, when present, replaces the default sources.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks YAML data against the embedded CUE schema.
func Validate(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// check enforces rules the schema cannot express.
func (c *Config) check() error {
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive, got %s", c.Lookback)
	}
	if _, err := event.ParseKinds(c.Kinds); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		name := s.SourceName()
		if seen[name] {
			return fmt.Errorf("duplicate source name %q", name)
		}
		seen[name] = true
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return fmt.Errorf("source %s: %w", name, err)
			}
		}
	}
	return nil
}

// EventKinds returns the parsed kinds filter; nil means all kinds.
func (c *Config) EventKinds() []event.Kind {
	kinds, _ := event.ParseKinds(c.Kinds)
	return kinds
}
