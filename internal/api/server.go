// Package api implements the relay daemon's HTTP surface: it re-serves
// the synced snapshot to downstream SDK clients and evaluates flags
// server-side for thin clients.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
)

type Server struct {
	store    *snapshot.Store
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
}

func NewServer(store *snapshot.Store, log zerolog.Logger, metrics *telemetry.Metrics, registry *prometheus.Registry) *Server {
	return &Server{store: store, log: log, metrics: metrics, registry: registry}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no snapshot"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// The stream handler owns its own lifetime, so the request timeout
	// applies to everything else.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/v1/flags/snapshot", s.handleSnapshot)
		r.Get("/v1/flags", s.handleListFlags)
		r.Post("/v1/evaluate/variant", s.handleEvaluateVariant)
		r.Post("/v1/evaluate/boolean", s.handleEvaluateBoolean)
		r.Post("/v1/evaluate/batch", s.handleEvaluateBatch)
	})
	r.Get("/v1/flags/stream", s.handleStream)

	return r
}

// handleSnapshot re-serves the current snapshot document with the same
// ETag semantics the upstream service uses, so relays can be chained.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeNotReady, "no snapshot synced yet")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag() {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag())
	writeJSON(w, http.StatusOK, snap.Document())
}

// handleStream announces snapshot etags over server-sent events. The
// current etag is sent immediately so a reconnecting client can decide
// whether it missed anything.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	updates, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if snap := s.store.Current(); snap != nil {
		writeEvent(w, snap.ETag())
	}
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case update := <-updates:
			writeEvent(w, update.ETag)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, etag string) {
	_, _ = w.Write([]byte("event: snapshot\ndata: " + etag + "\n\n"))
}
