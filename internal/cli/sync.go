package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/metrics"
	"github.com/roach88/timetrace/internal/telemetry"
)

// SyncOutput is the JSON payload of the sync command.
type SyncOutput struct {
	RunID    string         `json:"run_id"`
	Events   []eventOutput  `json:"events"`
	Sources  []sourceOutput `json:"sources"`
	Degraded []string       `json:"degraded"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print the merged timeline",
		Long: `Fetch new events from every active source, store them, and print
the merged view of the lookback window.

Sources that fail are reported as advisories; their stored history is
still shown.

Exit codes:
  0 - Pass completed (possibly with degraded sources)
  2 - Store unavailable or configuration error

Examples:
  timetrace sync
  timetrace sync --db ./timetrace.db --tz Europe/Berlin
  timetrace sync --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	shutdown, err := telemetry.Setup(ctx, s.cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			s.logger.Warn("flush traces failed", "error", err)
		}
	}()

	recorder := metrics.NewRecorder()
	syncer, err := s.synchronizer(recorder)
	if err != nil {
		return err
	}

	res, err := syncer.Sync(ctx)
	if err != nil {
		return s.syncFailed(err)
	}
	s.writeTextfile(recorder)

	degraded := res.Degraded()
	if s.out.JSON() {
		names := make([]string, len(degraded))
		for i, rep := range degraded {
			names[i] = rep.Source
		}
		return s.out.Encode(CLIResponse{
			Status: "ok",
			RunID:  res.RunID,
			Data: SyncOutput{
				RunID:    res.RunID,
				Events:   eventsOutput(res.Events),
				Sources:  sourcesOutput(res.Reports),
				Degraded: names,
			},
		})
	}

	w := s.out.Writer
	if len(res.Events) == 0 {
		fmt.Fprintln(w, "No events in the lookback window.")
	} else {
		writeDays(w, res.Events, s.loc)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d events, %d sources, %d degraded\n", len(res.Events), len(res.Reports), len(degraded))
	writeAdvisories(w, degraded)
	s.out.VerboseLog("run %s", res.RunID)
	return nil
}

// syncFailed reports a pass-level failure. Only an unreachable store
// aborts a pass.
func (s *session) syncFailed(err error) error {
	code := CodeStoreUnavailable
	if !engine.IsStoreUnavailable(err) {
		code = string(engine.Code(err))
	}
	if s.out.JSON() {
		if encErr := s.out.Error(code, err.Error(), nil); encErr != nil {
			return encErr
		}
	}
	return WrapExitError(ExitCommandError, "sync aborted", err)
}

// writeTextfile exports the recorder for the node_exporter textfile
// collector when configured.
func (s *session) writeTextfile(recorder *metrics.Recorder) {
	path := s.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, recorder.Registry()); err != nil {
		s.logger.Warn("write metrics textfile failed", "path", path, "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
