package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/event"
)

const macBootJSON = `[
  {"timestamp": "2025-01-06 08:00:00.123456+0000", "eventMessage": "Previous shutdown cause: 5", "messageType": "Default"},
  {"timestamp": "2025-01-06 12:30:00.000000+0000", "eventMessage": ""}
]`

func newTestMac(r Runner) *MacOS {
	return NewMacOS("", WithMacRunner(r), WithMacPlatform("darwin"), WithMacLocation(time.UTC))
}

func TestMacOS_IsActive(t *testing.T) {
	assert.True(t, NewMacOS("", WithMacPlatform("darwin")).IsActive())
	assert.False(t, NewMacOS("", WithMacPlatform("linux")).IsActive())
	assert.Equal(t, "mac", NewMacOS("").Name())
}

func TestMacOS_FetchParsesLogOutput(t *testing.T) {
	runner := &fakeRunner{handler: func(name string, args []string) ([]byte, error) {
		return []byte(macBootJSON), nil
	}}
	since := time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC).UnixMilli()

	events, err := newTestMac(runner).Fetch(context.Background(), []event.Kind{event.KindBoot}, since)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, event.KindBoot, events[0].Name)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 123_000_000, time.UTC).UnixMilli(), events[0].Time)
	assert.Equal(t, "Previous shutdown cause: 5", events[0].Details)
	assert.Equal(t, "No message", events[1].Details)

	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal(t, "log", c.name)
	assert.Equal(t, "2025-01-06 07:00:00", argAfter(c.args, "--start"))
	assert.Equal(t, "json", argAfter(c.args, "--style"))
	assert.Contains(t, argAfter(c.args, "--predicate"), "Previous shutdown cause")
}

func TestMacOS_OneQueryPerKind(t *testing.T) {
	runner := &fakeRunner{handler: func(string, []string) ([]byte, error) {
		return []byte("[]"), nil
	}}

	events, err := newTestMac(runner).Fetch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Len(t, runner.calls, len(event.SystemKinds))
}

func TestMacOS_NoMatchesIsEmpty(t *testing.T) {
	runner := &fakeRunner{handler: func(string, []string) ([]byte, error) {
		return nil, failed("log", "No matches found")
	}}

	events, err := newTestMac(runner).Fetch(context.Background(), []event.Kind{event.KindLogon}, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	runner.handler = func(string, []string) ([]byte, error) {
		return []byte("No matches found\n"), nil
	}
	events, err = newTestMac(runner).Fetch(context.Background(), []event.Kind{event.KindLogon}, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMacOS_PartialFailure(t *testing.T) {
	runner := &fakeRunner{handler: func(_ string, args []string) ([]byte, error) {
		if strings.Contains(argAfter(args, "--predicate"), "sessionDidLogin") {
			return nil, failed("log", "predicate error")
		}
		return []byte(macBootJSON), nil
	}}

	events, err := newTestMac(runner).Fetch(context.Background(),
		[]event.Kind{event.KindBoot, event.KindLogon}, 0)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Partial)
	assert.Equal(t, event.KindLogon, fe.Kind)
	assert.Equal(t, "mac", fe.Source)
	assert.Len(t, events, 2)
}

func TestMacOS_DropsEventsBeforeSince(t *testing.T) {
	runner := &fakeRunner{handler: func(string, []string) ([]byte, error) {
		return []byte(macBootJSON), nil
	}}
	since := time.Date(2025, 1, 6, 8, 0, 0, 500_000_000, time.UTC).UnixMilli()

	events, err := newTestMac(runner).Fetch(context.Background(), []event.Kind{event.KindBoot}, since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2025, 1, 6, 12, 30, 0, 0, time.UTC).UnixMilli(), events[0].Time)
	assert.Equal(t, "2025-01-06 08:00:00", argAfter(runner.calls[0].args, "--start"))
}

func TestMacOS_GarbageOutput(t *testing.T) {
	runner := &fakeRunner{handler: func(string, []string) ([]byte, error) {
		return []byte("not json"), nil
	}}

	_, err := newTestMac(runner).Fetch(context.Background(), []event.Kind{event.KindBoot}, 0)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.False(t, fe.Partial)
}

func TestParseMacTime(t *testing.T) {
	got, err := parseMacTime("2025-01-06 09:00:00-0100")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)))

	_, err = parseMacTime("09:00")
	assert.Error(t, err)
}
