package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/config"
	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/metrics"
	"github.com/roach88/timetrace/internal/source"
	"github.com/roach88/timetrace/internal/store"
)

// session is the state shared by commands that touch the store: the
// resolved config, the open store, and output helpers.
type session struct {
	opts   *RootOptions
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	loc    *time.Location
	out    *OutputFormatter
}

// openSession loads config, applies flag overrides, and opens the store.
// Failures are ExitErrors with ExitCommandError.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	loc, err := outputLocation(opts.Timezone)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --tz", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	logger.Debug("opening database", "path", cfg.Database)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &session{
		opts:   opts,
		cfg:    cfg,
		store:  st,
		logger: logger,
		loc:    loc,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// synchronizer builds a synchronizer over the session store. recorder may
// be nil.
func (s *session) synchronizer(recorder *metrics.Recorder) (*engine.Synchronizer, error) {
	sources := s.opts.Sources
	if sources == nil {
		var err error
		sources, err = BuildSources(s.cfg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to configure sources", err)
		}
	}

	opts := []engine.Option{
		engine.WithLookback(s.cfg.Lookback),
		engine.WithKinds(s.cfg.EventKinds()...),
		engine.WithLogger(s.logger),
	}
	if recorder != nil {
		opts = append(opts, engine.WithRecorder(recorder))
	}
	if s.opts.Clock != nil {
		opts = append(opts, engine.WithClock(s.opts.Clock))
	}
	if s.opts.RunIDs != nil {
		opts = append(opts, engine.WithRunIDs(s.opts.RunIDs))
	}

	syncer, err := engine.New(s.store, sources, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure sources", err)
	}
	return syncer, nil
}

// loadConfig reads the config file and applies --db.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// BuildSources creates the enabled sources of cfg in configuration order.
func BuildSources(cfg *config.Config) ([]source.Source, error) {
	registry, err := source.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, sc := range cfg.Sources {
		if !sc.IsEnabled() {
			continue
		}
		src, err := buildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.SourceName(), err)
		}
		if err := registry.Register(src); err != nil {
			return nil, err
		}
	}
	return registry.Sources(), nil
}

func buildSource(sc config.SourceConfig) (source.Source, error) {
	name := sc.SourceName()
	switch sc.Type {
	case config.TypeMacOS:
		return source.NewMacOS(name), nil
	case config.TypeWindows:
		return source.NewWindows(name), nil
	case config.TypeJira:
		loc := time.UTC
		if sc.Timezone != "" {
			var err error
			if loc, err = time.LoadLocation(sc.Timezone); err != nil {
				return nil, err
			}
		}
		return source.NewJira(name, source.JiraConfig{
			BaseURL:  sc.BaseURL,
			Email:    sc.Email,
			APIToken: sc.APIToken,
			JQL:      sc.JQL,
			Location: loc,
			Timeout:  sc.Timeout,
			PageSize: sc.PageSize,
		}), nil
	case config.TypeReplay:
		if sc.Path == "" {
			return nil, fmt.Errorf("replay source requires path")
		}
		return source.NewReplay(name, sc.Path), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.Type)
	}
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func outputLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
