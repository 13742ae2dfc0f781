package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/metrics"
	"github.com/roach88/timetrace/internal/telemetry"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval    time.Duration
	MetricsAddr string

	// Count stops after this many passes; zero runs until interrupted.
	Count int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync repeatedly and expose Prometheus metrics",
		Long: `Run a sync pass every --interval until interrupted.

Each pass prints a one-line summary. An unavailable store aborts only that
pass; the next one retries. With --metrics-addr (or metrics.listen in the
config) /metrics and /healthz are served for Prometheus.

Examples:
  timetrace watch
  timetrace watch --interval 1m --metrics-addr :9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 5*time.Minute, "time between passes")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for /metrics (overrides config)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many passes (0 = until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	if opts.Interval <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--interval must be positive, got %s", opts.Interval))
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, s.cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			s.logger.Warn("flush traces failed", "error", err)
		}
	}()

	recorder := metrics.NewRecorder()
	syncer, err := s.synchronizer(recorder)
	if err != nil {
		return err
	}

	addr := opts.MetricsAddr
	if addr == "" {
		addr = s.cfg.Metrics.Listen
	}
	if addr != "" {
		srv := metrics.NewServer(addr, recorder)
		go func() {
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		s.logger.Info("serving metrics", "addr", addr)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for pass := 1; ; pass++ {
		s.watchPass(ctx, syncer, recorder)
		if opts.Count > 0 && pass >= opts.Count {
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Info("watch stopped", "passes", pass)
			return nil
		case <-ticker.C:
		}
	}
}

// watchPass runs one pass and prints its summary line. Errors never stop
// the loop.
func (s *session) watchPass(ctx context.Context, syncer *engine.Synchronizer, recorder *metrics.Recorder) {
	res, err := syncer.Sync(ctx)
	if err != nil {
		if s.out.JSON() {
			_ = s.out.Error(string(engine.Code(err)), err.Error(), nil)
			return
		}
		fmt.Fprintf(s.out.Writer, "%s pass aborted: %v\n", clockOf(s.opts).Now().In(s.loc).Format(time.DateTime), err)
		return
	}
	s.writeTextfile(recorder)

	degraded := res.Degraded()
	if s.out.JSON() {
		_ = s.out.Encode(CLIResponse{
			Status: "ok",
			RunID:  res.RunID,
			Data:   sourcesOutput(res.Reports),
		})
		return
	}

	inserted := 0
	for _, rep := range res.Reports {
		inserted += rep.Inserted
	}
	fmt.Fprintf(s.out.Writer, "%s %d new, %d in window, %d degraded\n",
		res.FinishedAt.In(s.loc).Format(time.DateTime), inserted, len(res.Events), len(degraded))
	writeAdvisories(s.out.Writer, degraded)
}
