package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/store"
	"github.com/roach88/timetrace/internal/watermark"
)

// CheckOutput is the JSON payload of the check command.
type CheckOutput struct {
	Healthy           bool `json:"healthy"`
	Events            int  `json:"events"`
	InvalidTimes      int  `json:"invalid_times"`
	DuplicateKeys     int  `json:"duplicate_keys"`
	UntypedWatermarks int  `json:"untyped_watermarks"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check store integrity",
		Long: `Run read-only integrity checks over the store:

  - events timestamped before 2000 (seconds stored as milliseconds)
  - events sharing a (time, name, source) key
  - watermarks not stored as integers

Exit codes:
  0 - Store is healthy
  1 - Findings were reported
  2 - Store could not be opened`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	if err := s.store.Ping(ctx); err != nil {
		return WrapExitError(ExitCommandError, "store unavailable", err)
	}
	h, err := s.store.CheckHealth(ctx, watermark.Suffix)
	if err != nil {
		return WrapExitError(ExitCommandError, "health check failed", err)
	}
	count, err := s.store.CountEvents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "health check failed", err)
	}

	out := CheckOutput{
		Healthy:           h.Healthy(),
		Events:            count,
		InvalidTimes:      h.InvalidTimes,
		DuplicateKeys:     h.DuplicateKeys,
		UntypedWatermarks: h.UntypedWatermarks,
	}

	if s.out.JSON() {
		if out.Healthy {
			return s.out.Success(out)
		}
		if err := s.out.Error(CodeUnhealthy, "store has integrity findings", out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "store has integrity findings")
	}

	writeHealth(s.out, h, count)
	if !out.Healthy {
		return NewExitError(ExitFailure, "store has integrity findings")
	}
	return nil
}

func writeHealth(out *OutputFormatter, h store.HealthReport, events int) {
	w := out.Writer
	mark := func(n int) string {
		if n == 0 {
			return "✓"
		}
		return "✗"
	}
	fmt.Fprintf(w, "%s %d events with implausible timestamps\n", mark(h.InvalidTimes), h.InvalidTimes)
	fmt.Fprintf(w, "%s %d duplicate event keys\n", mark(h.DuplicateKeys), h.DuplicateKeys)
	fmt.Fprintf(w, "%s %d non-integer watermarks\n", mark(h.UntypedWatermarks), h.UntypedWatermarks)
	fmt.Fprintln(w)
	if h.Healthy() {
		fmt.Fprintf(w, "Store healthy (%d events)\n", events)
		return
	}
	fmt.Fprintf(w, "Store has integrity findings (%d events)\n", events)
}
