package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/event"
)

func TestFaultyStore_TargetsOneSource(t *testing.T) {
	fs := NewFaultyStore(OpenStore(t))
	ctx := context.Background()
	boom := errors.New("disk full")

	fs.Fail(OpInsert, "mac", boom)

	_, err := fs.InsertBatch(ctx, []event.Event{{Time: event.MinValidTime, Name: event.KindBoot, Source: "mac"}})
	assert.ErrorIs(t, err, boom)

	n, err := fs.InsertBatch(ctx, []event.Event{{Time: event.MinValidTime, Name: event.KindBoot, Source: "os"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFaultyStore_WildcardAndHeal(t *testing.T) {
	fs := NewFaultyStore(OpenStore(t))
	ctx := context.Background()
	boom := errors.New("locked")

	fs.Fail(OpAdvance, "", boom)
	_, err := fs.AdvanceIntProperty(ctx, "os.lastFetchTime", 10)
	assert.ErrorIs(t, err, boom)

	fs.Heal()
	advanced, err := fs.AdvanceIntProperty(ctx, "os.lastFetchTime", 10)
	require.NoError(t, err)
	assert.True(t, advanced)
}

func TestPropertySource(t *testing.T) {
	assert.Equal(t, "os", propertySource("os.lastFetchTime"))
	assert.Equal(t, "corp.jira", propertySource("corp.jira.lastFetchTime"))
}
