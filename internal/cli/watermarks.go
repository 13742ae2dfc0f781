package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/watermark"
)

// WatermarkOutput is one row of the watermarks command.
type WatermarkOutput struct {
	Source    string `json:"source"`
	Watermark string `json:"watermark"`
}

// NewWatermarksCommand creates the watermarks command.
func NewWatermarksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watermarks",
		Short: "Show how far each source has been synced",
		Long: `List each source's watermark: the latest event time it has
delivered into the store. The next pass fetches from there.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatermarks(rootOpts, cmd)
		},
	}
}

func runWatermarks(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	marks, err := watermark.New(s.store).All(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read watermarks", err)
	}

	rows := make([]WatermarkOutput, 0, len(marks))
	for src, ms := range marks {
		rows = append(rows, WatermarkOutput{Source: src, Watermark: formatMillis(ms)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })

	if s.out.JSON() {
		return s.out.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(s.out.Writer, "No sources synced yet.")
		return nil
	}

	tw := tabwriter.NewWriter(s.out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tWATERMARK")
	for _, row := range rows {
		ms := marks[row.Source]
		fmt.Fprintf(tw, "%s\t%s\n", row.Source, toLocal(ms, s).Format("2006-01-02 15:04:05 MST"))
	}
	return tw.Flush()
}
