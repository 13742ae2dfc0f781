// Package metrics exposes sync outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/timetrace/internal/engine"
)

const namespace = "timetrace"

// Recorder implements engine.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	passes      prometheus.Counter
	lastPass    prometheus.Gauge
	merged      prometheus.Gauge
	degraded    prometheus.Gauge
	fetched     *prometheus.CounterVec
	inserted    *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	watermark   *prometheus.GaugeVec
	sourceTimes *prometheus.HistogramVec
}

var _ engine.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry. Process and Go
// runtime collectors are included so /metrics is useful on its own.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.passes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_passes_total",
		Help:      "Number of completed sync passes",
	})
	r.lastPass = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the last completed sync pass",
	})
	r.merged = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_merged_events",
		Help:      "Events in the merged view of the last pass",
	})
	r.degraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_degraded_sources",
		Help:      "Sources that failed during the last pass",
	})
	r.fetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_fetched_total",
		Help:      "Valid events returned by a source",
	}, []string{"source"})
	r.inserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_inserted_total",
		Help:      "Events newly written to the store",
	}, []string{"source"})
	r.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_duplicate_total",
		Help:      "Fetched events already present in the store",
	}, []string{"source"})
	r.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_dropped_total",
		Help:      "Fetched events rejected as invalid",
	}, []string{"source"})
	r.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_branches_total",
		Help:      "Source branches by outcome status",
	}, []string{"source", "status"})
	r.watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_watermark_timestamp_seconds",
		Help:      "Unix timestamp of the source's watermark",
	}, []string{"source"})
	r.sourceTimes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_duration_seconds",
		Help:      "Time spent in one source branch",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"source"})

	r.registry.MustRegister(
		r.passes, r.lastPass, r.merged, r.degraded,
		r.fetched, r.inserted, r.duplicates, r.dropped,
		r.outcomes, r.watermark, r.sourceTimes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSource implements engine.Recorder.
func (r *Recorder) ObserveSource(rep engine.SourceReport) {
	r.outcomes.WithLabelValues(rep.Source, string(rep.Status)).Inc()
	r.sourceTimes.WithLabelValues(rep.Source).Observe(rep.Duration.Seconds())
	if rep.Status == engine.StatusInactive {
		return
	}
	r.fetched.WithLabelValues(rep.Source).Add(float64(rep.Fetched))
	r.inserted.WithLabelValues(rep.Source).Add(float64(rep.Inserted))
	r.duplicates.WithLabelValues(rep.Source).Add(float64(rep.Duplicates))
	r.dropped.WithLabelValues(rep.Source).Add(float64(rep.Dropped))
	if rep.Watermark > 0 {
		r.watermark.WithLabelValues(rep.Source).Set(float64(rep.Watermark) / 1000)
	}
}

// ObservePass implements engine.Recorder.
func (r *Recorder) ObservePass(res *engine.Result) {
	r.passes.Inc()
	r.lastPass.Set(float64(res.FinishedAt.Unix()))
	r.merged.Set(float64(len(res.Events)))
	r.degraded.Set(float64(len(res.Degraded())))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /healthz.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server for r listening on addr.
func NewServer(addr string, r *Recorder) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

// Serve blocks until the server stops. Returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Serve() error { return s.server.ListenAndServe() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
