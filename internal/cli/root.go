package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/source"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // config file; empty means ~/.timetrace/config.yaml if present
	Database string // overrides the configured database path
	Timezone string // IANA zone for text output; empty means local time

	// Clock, RunIDs, and Sources override the synchronizer's defaults
	// (for testing). Sources replaces the configured source list.
	Clock   engine.Clock
	RunIDs  engine.RunIDGenerator
	Sources []source.Source
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the timetrace CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timetrace",
		Short: "timetrace - activity timeline from system logs",
		Long: `Collect boot, logon, standby, and issue-tracker activity from
several sources into one deduplicated local timeline.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "tz", "", "time zone for text output (default local)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewWatermarksCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
