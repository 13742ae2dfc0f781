package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/timetrace/internal/event"
)

// winEventID identifies a System log record by provider and event id.
type winEventID struct {
	kind     event.Kind
	id       int
	provider string
}

var winEvents = []winEventID{
	{event.KindBoot, 12, "Microsoft-Windows-Kernel-General"},
	{event.KindShutdown, 13, "Microsoft-Windows-Kernel-General"},
	{event.KindLogon, 7001, "Microsoft-Windows-Winlogon"},
	{event.KindLogoff, 7002, "Microsoft-Windows-Winlogon"},
	{event.KindStandbyEnter, 506, "Microsoft-Windows-Kernel-Power"},
	{event.KindStandbyExit, 507, "Microsoft-Windows-Kernel-Power"},
}

// winNoEvents is the Get-WinEvent error text for an empty result.
const winNoEvents = "No events were found that match the specified selection criteria"

// rawWinEvent is one record of the PowerShell ConvertTo-Json output.
type rawWinEvent struct {
	TimeCreated  string `json:"TimeCreated"`
	ID           int    `json:"Id"`
	ProviderName string `json:"ProviderName"`
	Message      string `json:"Message"`
}

// Windows reads system activity from the Windows System event log.
type Windows struct {
	name     string
	runner   Runner
	platform string
	shells   []string
}

// WindowsOption configures a Windows source.
type WindowsOption func(*Windows)

// WithWindowsRunner overrides the command runner.
func WithWindowsRunner(r Runner) WindowsOption {
	return func(w *Windows) { w.runner = r }
}

// WithWindowsPlatform overrides the detected GOOS.
func WithWindowsPlatform(goos string) WindowsOption {
	return func(w *Windows) { w.platform = goos }
}

// NewWindows creates an event-log source named name ("windows" if empty).
// PowerShell 7 (pwsh) is preferred; Windows PowerShell is the fallback.
func NewWindows(name string, opts ...WindowsOption) *Windows {
	if name == "" {
		name = "windows"
	}
	w := &Windows{
		name:     name,
		runner:   ExecRunner{},
		platform: runtime.GOOS,
		shells:   []string{"pwsh", "powershell.exe"},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Source.
func (w *Windows) Name() string { return w.name }

// IsActive implements Source. Active on windows only.
func (w *Windows) IsActive() bool { return w.platform == "windows" }

// Fetch implements Source. All selected kinds are read with a single
// Get-WinEvent call filtered by event id.
func (w *Windows) Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error) {
	supported := make([]event.Kind, len(winEvents))
	for i, e := range winEvents {
		supported[i] = e.kind
	}
	selected := selectKinds(supported, kinds)
	if len(selected) == 0 {
		return []event.Event{}, nil
	}

	script := winScript(selected, time.UnixMilli(since).UTC())
	out, err := w.runPowerShell(ctx, script)
	if err != nil {
		if outputContains(err, winNoEvents) {
			return []event.Event{}, nil
		}
		return nil, &FetchError{Source: w.name, Cause: err}
	}

	events, err := parseWinEvents(out)
	if err != nil {
		return nil, &FetchError{Source: w.name, Cause: err}
	}
	return events, nil
}

func (w *Windows) runPowerShell(ctx context.Context, script string) ([]byte, error) {
	args := []string{
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-Command", script,
	}

	var lastErr error
	for _, shell := range w.shells {
		out, err := w.runner.Run(ctx, shell, args...)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// winScript builds the Get-WinEvent pipeline. TimeCreated is emitted as a
// round-trip UTC string so parsing does not depend on the PowerShell
// version's DateTime serialization.
func winScript(kinds []event.Kind, start time.Time) string {
	ids := make([]string, 0, len(kinds))
	for _, k := range kinds {
		for _, e := range winEvents {
			if e.kind == k {
				ids = append(ids, strconv.Itoa(e.id))
			}
		}
	}
	return fmt.Sprintf(
		"[Console]::OutputEncoding = [System.Text.Encoding]::UTF8; "+
			"Get-WinEvent -ErrorAction Stop -FilterHashtable @{LogName='System';Id=%s;StartTime='%s'} | "+
			"Select-Object @{n='TimeCreated';e={$_.TimeCreated.ToUniversalTime().ToString('o')}}, Id, ProviderName, Message | "+
			"ConvertTo-Json",
		strings.Join(ids, ","),
		start.Format("2006-01-02T15:04:05.000Z"),
	)
}

// parseWinEvents decodes ConvertTo-Json output, which is a single object
// for one record and an array otherwise. Records whose (provider, id) pair
// is not one of winEvents are skipped.
func parseWinEvents(out []byte) ([]event.Event, error) {
	text := bytes.TrimSpace(out)
	if len(text) == 0 {
		return []event.Event{}, nil
	}

	var raw []rawWinEvent
	if text[0] == '{' {
		var single rawWinEvent
		if err := json.Unmarshal(text, &single); err != nil {
			return nil, fmt.Errorf("parse event log output: %w", err)
		}
		raw = []rawWinEvent{single}
	} else if err := json.Unmarshal(text, &raw); err != nil {
		return nil, fmt.Errorf("parse event log output: %w", err)
	}

	events := make([]event.Event, 0, len(raw))
	for _, r := range raw {
		kind, ok := winKind(r.ID, r.ProviderName)
		if !ok {
			continue
		}
		ts, err := parseWinTime(r.TimeCreated)
		if err != nil {
			return nil, err
		}
		events = append(events, event.Event{
			Time:    ts,
			Name:    kind,
			Details: r.ProviderName + ": " + strings.TrimSpace(r.Message),
		})
	}
	return events, nil
}

func winKind(id int, provider string) (event.Kind, bool) {
	for _, e := range winEvents {
		if e.id == id && e.provider == provider {
			return e.kind, true
		}
	}
	return "", false
}

// parseWinTime accepts ISO 8601 strings and the legacy "/Date(ms)/" form
// produced by Windows PowerShell 5.1.
func parseWinTime(s string) (int64, error) {
	if strings.HasPrefix(s, "/Date(") && strings.HasSuffix(s, ")/") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "/Date("), ")/")
		// Strip an optional zone offset such as "+0100".
		if i := strings.IndexAny(inner[1:], "+-"); i >= 0 {
			inner = inner[:i+1]
		}
		ms, err := strconv.ParseInt(inner, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse event time %q: %w", s, err)
		}
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("parse event time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}
