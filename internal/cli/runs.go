package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunOutput is the JSON form of a recorded pass.
type RunOutput struct {
	ID         string            `json:"id"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Events     int               `json:"events"`
	Degraded   bool              `json:"degraded"`
	Sources    []store.SourceRun `json:"sources"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync passes",
		Long: `List recorded sync passes, newest first, with per-source outcomes.

Examples:
  timetrace runs
  timetrace runs --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of runs to show (0 for all)")
	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.store.ReadRuns(commandContext(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if s.out.JSON() {
		out := make([]RunOutput, len(runs))
		for i, r := range runs {
			out[i] = RunOutput{
				ID:         r.ID,
				StartedAt:  formatMillis(r.StartedAt),
				FinishedAt: formatMillis(r.FinishedAt),
				Events:     r.EventCount,
				Degraded:   r.Degraded,
				Sources:    r.Sources,
			}
		}
		return s.out.Success(out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(s.out.Writer, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(s.out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tEVENTS\tSOURCES")
	for _, r := range runs {
		took := time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			toLocal(r.StartedAt, s).Format("2006-01-02 15:04:05"),
			took,
			r.EventCount,
			sourceSummary(r.Sources),
		)
	}
	return tw.Flush()
}

// sourceSummary renders "mac ok, jira fetch_failed".
func sourceSummary(sources []store.SourceRun) string {
	out := ""
	for i, src := range sources {
		if i > 0 {
			out += ", "
		}
		out += src.Source + " " + src.Status
	}
	return out
}

func toLocal(ms int64, s *session) time.Time {
	return event.ToTime(ms).In(s.loc)
}
