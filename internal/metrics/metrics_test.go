package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetrace/internal/engine"
	"github.com/roach88/timetrace/internal/event"
)

func TestRecorder_ObserveSource(t *testing.T) {
	r := NewRecorder()

	r.ObserveSource(engine.SourceReport{
		Source:     "os",
		Status:     engine.StatusOK,
		Fetched:    5,
		Inserted:   3,
		Duplicates: 2,
		Watermark:  1736121600000,
		Duration:   200 * time.Millisecond,
	})
	r.ObserveSource(engine.SourceReport{
		Source: "os",
		Status: engine.StatusFetchFailed,
		Err:    errors.New("boom"),
	})

	assert.Equal(t, 5.0, testutil.ToFloat64(r.fetched.WithLabelValues("os")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.inserted.WithLabelValues("os")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.duplicates.WithLabelValues("os")))
	assert.Equal(t, 1736121600.0, testutil.ToFloat64(r.watermark.WithLabelValues("os")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("os", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("os", "fetch_failed")))
}

func TestRecorder_InactiveCountsOutcomeOnly(t *testing.T) {
	r := NewRecorder()
	r.ObserveSource(engine.SourceReport{Source: "jira", Status: engine.StatusInactive})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("jira", "inactive")))
	assert.Equal(t, 0, testutil.CollectAndCount(r.fetched))
}

func TestRecorder_ObservePass(t *testing.T) {
	r := NewRecorder()
	finished := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	r.ObservePass(&engine.Result{
		FinishedAt: finished,
		Events:     []event.Event{{Time: 1}, {Time: 2}},
		Reports: []engine.SourceReport{
			{Source: "os", Status: engine.StatusOK},
			{Source: "mac", Status: engine.StatusWriteFailed},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.passes))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.lastPass))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.merged))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.degraded))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveSource(engine.SourceReport{Source: "os", Status: engine.StatusOK, Fetched: 1})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `timetrace_source_events_fetched_total{source="os"} 1`)
}
