package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/testutil"
)

var t0 = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

const replayEvents = `
events:
  - time: 2025-01-06T08:00:00Z
    name: boot
    details: cold start
  - time: 2025-01-06T09:00:00Z
    name: logon
    details: "user: alice"
`

// fixture is a config file with one replay source, a database path, and
// pinned clock and run IDs.
type fixture struct {
	dir    string
	config string
	db     string
	opts   *RootOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	replay := filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(replay, []byte(replayEvents), 0644))

	config := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("lookback: 168h\nsources:\n  - type: replay\n    name: demo\n    path: %s\n", replay)
	require.NoError(t, os.WriteFile(config, []byte(content), 0644))

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}

	return &fixture{
		dir:    dir,
		config: config,
		db:     filepath.Join(dir, "timetrace.db"),
		opts: &RootOptions{
			Clock:  testutil.NewManualClock(t0),
			RunIDs: engine.NewFixedGenerator(ids...),
		},
	}
}

// run executes the root command with the fixture's config and database.
func (f *fixture) run(args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := newRootCommand(f.opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", f.config, "--db", f.db, "--tz", "UTC"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}
