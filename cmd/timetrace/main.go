// Command timetrace collects activity events from system logs and issue
// trackers into a local, deduplicated timeline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/timetrace/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
