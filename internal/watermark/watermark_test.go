package watermark

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/store"
)

func newTestWatermarks(t *testing.T) (*Store, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func TestGet_AbsentBeforeFirstSync(t *testing.T) {
	w, _ := newTestWatermarks(t)

	_, ok, err := w.Get(context.Background(), "os")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdvance_Monotonic(t *testing.T) {
	w, _ := newTestWatermarks(t)
	ctx := context.Background()

	advanced, err := w.Advance(ctx, "os", 2000)
	require.NoError(t, err)
	assert.True(t, advanced)

	advanced, err = w.Advance(ctx, "os", 1000)
	require.NoError(t, err)
	assert.False(t, advanced)

	ms, ok, err := w.Get(ctx, "os")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2000), ms)

	_, err = w.Advance(ctx, "os", 3000)
	require.NoError(t, err)
	ms, _, err = w.Get(ctx, "os")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ms)
}

func TestAdvance_PerSourceIsolation(t *testing.T) {
	w, _ := newTestWatermarks(t)
	ctx := context.Background()

	_, err := w.Advance(ctx, "os", 5000)
	require.NoError(t, err)
	_, err = w.Advance(ctx, "jira", 100)
	require.NoError(t, err)

	all, err := w.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"os": 5000, "jira": 100}, all)
}

func TestResolve_DefaultLookback(t *testing.T) {
	w, _ := newTestWatermarks(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)

	b, err := w.Resolve(ctx, "os", now, DefaultLookback)
	require.NoError(t, err)
	assert.False(t, b.Stored)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), b.Since)

	_, err = w.Advance(ctx, "os", 42)
	require.NoError(t, err)
	b, err = w.Resolve(ctx, "os", now, DefaultLookback)
	require.NoError(t, err)
	assert.Equal(t, Bound{Since: 42, Watermark: 42, Stored: true}, b)
}

func TestGet_WrongType(t *testing.T) {
	w, st := newTestWatermarks(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertProperty(ctx, PropertyName("os"), store.PropertyText, "soon"))

	_, _, err := w.Get(ctx, "os")
	assert.Error(t, err)
}

type failingProps struct{ err error }

func (f failingProps) GetProperty(context.Context, string) (store.Property, bool, error) {
	return store.Property{}, false, f.err
}

func (f failingProps) AdvanceIntProperty(context.Context, string, int64) (bool, error) {
	return false, f.err
}

func (f failingProps) ListProperties(context.Context, string) ([]store.Property, error) {
	return nil, f.err
}

func TestErrorsAreWrapped(t *testing.T) {
	sentinel := errors.New("disk gone")
	w := New(failingProps{err: sentinel})
	ctx := context.Background()

	_, _, err := w.Get(ctx, "os")
	assert.ErrorIs(t, err, sentinel)

	_, err = w.Advance(ctx, "os", 1)
	assert.ErrorIs(t, err, sentinel)

	_, err = w.Resolve(ctx, "os", time.Now(), DefaultLookback)
	assert.ErrorIs(t, err, sentinel)
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "os.lastFetchTime", PropertyName("os"))
}
