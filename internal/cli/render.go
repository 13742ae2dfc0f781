package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/merge"
)

// eventOutput is the JSON form of an event.
type eventOutput struct {
	Time    string     `json:"time"`
	Source  string     `json:"source"`
	Name    event.Kind `json:"name"`
	Details string     `json:"details,omitempty"`
}

func eventsOutput(events []event.Event) []eventOutput {
	out := make([]eventOutput, len(events))
	for i, e := range events {
		out[i] = eventOutput{
			Time:    formatMillis(e.Time),
			Source:  e.Source,
			Name:    e.Name,
			Details: e.Details,
		}
	}
	return out
}

// sourceOutput is the JSON form of a source report.
type sourceOutput struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Since      string `json:"since,omitempty"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Dropped    int    `json:"dropped,omitempty"`
	Watermark  string `json:"watermark,omitempty"`
	Error      string `json:"error,omitempty"`
}

func sourcesOutput(reports []engine.SourceReport) []sourceOutput {
	out := make([]sourceOutput, len(reports))
	for i, rep := range reports {
		out[i] = sourceOutput{
			Source:     rep.Source,
			Status:     string(rep.Status),
			Fetched:    rep.Fetched,
			Inserted:   rep.Inserted,
			Duplicates: rep.Duplicates,
			Dropped:    rep.Dropped,
		}
		if rep.Since != 0 {
			out[i].Since = formatMillis(rep.Since)
		}
		if rep.Watermark != 0 {
			out[i].Watermark = formatMillis(rep.Watermark)
		}
		if rep.Err != nil {
			out[i].Error = rep.Err.Error()
		}
	}
	return out
}

// writeDays prints events grouped by calendar day in loc:
//
//	Mon 2025-01-06
//	  08:00  boot   mac
//	  09:00  logon  mac  user: alice
func writeDays(w io.Writer, events []event.Event, loc *time.Location) {
	for i, day := range merge.GroupByDay(events, loc) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, day.Date.Format("Mon 2006-01-02"))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, e := range day.Events {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", e.At().In(loc).Format("15:04"), e.Name, e.Source, e.Details)
		}
		tw.Flush()
	}
}

// writeAdvisories prints one line per degraded source.
func writeAdvisories(w io.Writer, degraded []engine.SourceReport) {
	for _, rep := range degraded {
		fmt.Fprintf(w, "! %s %s: %v\n", rep.Source, rep.Status, rep.Err)
	}
}

func formatMillis(ms int64) string {
	return event.ToTime(ms).Format(time.RFC3339Nano)
}
