package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/event"
	"github.com/roach88/timetrace/internal/source"
)

func TestStubSource_ScriptAndRepeat(t *testing.T) {
	boot := event.Event{Time: 1000, Name: event.KindBoot}
	logon := event.Event{Time: 2000, Name: event.KindLogon}
	stub := NewStubSource("os",
		Response{Events: []event.Event{boot}},
		Response{Events: []event.Event{boot, logon}},
	)
	ctx := context.Background()

	got, err := stub.Fetch(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []event.Event{boot}, got)

	got, err = stub.Fetch(ctx, nil, 1500)
	require.NoError(t, err)
	assert.Equal(t, []event.Event{logon}, got, "events before since are filtered")

	got, err = stub.Fetch(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2, "last response repeats")

	calls := stub.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, int64(1500), calls[1].Since)
}

func TestStubSource_EmptyScript(t *testing.T) {
	stub := NewStubSource("os")
	got, err := stub.Fetch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStubSource_Error(t *testing.T) {
	stub := NewStubSource("mac", Response{Err: FetchFailure("mac", errors.New("log: timeout"))})
	_, err := stub.Fetch(context.Background(), nil, 0)
	assert.True(t, source.IsFetchError(err))
}

func TestStubSource_Active(t *testing.T) {
	stub := NewStubSource("jira")
	assert.True(t, stub.IsActive())
	stub.SetActive(false)
	assert.False(t, stub.IsActive())
}
