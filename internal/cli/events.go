package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Since   string
	Until   string
	Sources []string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List stored events without syncing",
		Long: `List events already in the store.

--since and --until accept an RFC 3339 timestamp, a date (YYYY-MM-DD, in
the --tz zone), or a duration counted back from now (e.g. 72h). --since
defaults to the configured lookback.

Examples:
  timetrace events
  timetrace events --since 2025-01-01 --until 2025-02-01
  timetrace events --since 24h --source mac --source jira`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "start of the range (inclusive)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "end of the range (exclusive)")
	cmd.Flags().StringSliceVar(&opts.Sources, "source", nil, "only these sources (repeatable)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	now := clockOf(opts.RootOptions).Now()
	r := store.Range{Sources: opts.Sources}

	r.From = event.FromTime(now.Add(-s.cfg.Lookback))
	if opts.Since != "" {
		if r.From, err = parseBound(opts.Since, now, s.loc); err != nil {
			return WrapExitError(ExitCommandError, "invalid --since", err)
		}
	}
	if opts.Until != "" {
		if r.To, err = parseBound(opts.Until, now, s.loc); err != nil {
			return WrapExitError(ExitCommandError, "invalid --until", err)
		}
	}

	events, err := s.store.SelectRange(commandContext(cmd), r)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if s.out.JSON() {
		return s.out.Success(eventsOutput(events))
	}
	if len(events) == 0 {
		fmt.Fprintln(s.out.Writer, "No events found.")
		return nil
	}
	writeDays(s.out.Writer, events, s.loc)
	return nil
}

// parseBound reads an RFC 3339 time, a date in loc, or a duration before
// now. Returns epoch milliseconds.
func parseBound(s string, now time.Time, loc *time.Location) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return event.FromTime(t), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return event.FromTime(t), nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return event.FromTime(now.Add(-d)), nil
	}
	return 0, fmt.Errorf("%q is not a timestamp, date, or duration", s)
}

func clockOf(opts *RootOptions) engine.Clock {
	if opts.Clock != nil {
		return opts.Clock
	}
	return engine.SystemClock{}
}
