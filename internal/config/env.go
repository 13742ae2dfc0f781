package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the TIMETRACE_* variables. Empty values leave the file
// setting alone.
type envOverrides struct {
	Database      string        `env:"TIMETRACE_DB"`
	Lookback      time.Duration `env:"TIMETRACE_LOOKBACK"`
	MetricsListen string        `env:"TIMETRACE_METRICS_ADDR"`
	OTLPEndpoint  string        `env:"TIMETRACE_OTEL_ENDPOINT"`

	JiraBaseURL  string `env:"TIMETRACE_JIRA_BASE_URL"`
	JiraEmail    string `env:"TIMETRACE_JIRA_EMAIL"`
	JiraAPIToken string `env:"TIMETRACE_JIRA_API_TOKEN"`
}

// ApplyEnv overlays environment variables on cfg. Jira credentials apply
// to every jira source; setting TIMETRACE_JIRA_BASE_URL with no jira source
// configured adds one.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Lookback != 0 {
		if o.Lookback < 0 {
			return fmt.Errorf("parse env: TIMETRACE_LOOKBACK must be positive, got %s", o.Lookback)
		}
		cfg.Lookback = o.Lookback
	}
	if o.MetricsListen != "" {
		cfg.Metrics.Listen = o.MetricsListen
	}
	if o.OTLPEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = o.OTLPEndpoint
	}

	hasJira := false
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Type != TypeJira {
			continue
		}
		hasJira = true
		if o.JiraBaseURL != "" {
			s.BaseURL = o.JiraBaseURL
		}
		if o.JiraEmail != "" {
			s.Email = o.JiraEmail
		}
		if o.JiraAPIToken != "" {
			s.APIToken = o.JiraAPIToken
		}
	}
	if !hasJira && o.JiraBaseURL != "" {
		cfg.Sources = append(cfg.Sources, SourceConfig{
			Type:     TypeJira,
			BaseURL:  o.JiraBaseURL,
			Email:    o.JiraEmail,
			APIToken: o.JiraAPIToken,
		})
	}
	return nil
}
