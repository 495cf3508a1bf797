// Package telemetry defines the client's Prometheus instrumentation.
package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's collectors. A nil *Metrics is valid and all
// observe methods become no-ops, so the SDK works without a registry.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	snapshotFlags prometheus.Gauge
	snapshotAge   prometheus.Gauge

	httpReqs *prometheus.CounterVec
	httpDur  *prometheus.HistogramVec
}

// New builds and registers the collectors on reg. Returns nil when reg is
// nil so metric calls degrade to no-ops.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagship_evaluations_total",
				Help: "Total flag evaluations by namespace and reason",
			},
			[]string{"namespace", "reason"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagship_fetches_total",
				Help: "Snapshot fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flagship_fetch_duration_seconds",
			Help:    "Snapshot fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotFlags: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flagship_snapshot_flags",
			Help: "Number of flags in the current snapshot",
		}),
		snapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flagship_snapshot_fetched_timestamp_seconds",
			Help: "Unix timestamp of the current snapshot's fetch time",
		}),
		httpReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	reg.MustRegister(m.evaluations, m.fetches, m.fetchDuration, m.snapshotFlags, m.snapshotAge, m.httpReqs, m.httpDur)
	return m
}

// ObserveEvaluation counts one evaluation outcome.
func (m *Metrics) ObserveEvaluation(namespace, reason string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(namespace, reason).Inc()
}

// Fetch outcome labels.
const (
	FetchSuccess     = "success"
	FetchNotModified = "not_modified"
	FetchError       = "error"
)

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// ObserveSnapshot records the published snapshot's size and fetch time.
func (m *Metrics) ObserveSnapshot(flagCount int, fetchedAt time.Time) {
	if m == nil {
		return
	}
	m.snapshotFlags.Set(float64(flagCount))
	m.snapshotAge.Set(float64(fetchedAt.Unix()))
}

// Middleware instruments HTTP handlers; used by the relay daemon.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		m.httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		m.httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
