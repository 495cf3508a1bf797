// Command flagshipd is the flag relay daemon: it syncs a snapshot from
// the flag service (or a local bundle) and re-serves it, together with
// server-side evaluation, to downstream clients.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagship-go-sdk/internal/api"
	"github.com/TimurManjosov/flagship-go-sdk/internal/bundle"
	"github.com/TimurManjosov/flagship-go-sdk/internal/config"
	"github.com/TimurManjosov/flagship-go-sdk/internal/fetcher"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(registry)

	store := snapshot.NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	if cfg.BundlePath != "" {
		watcher, err := bundle.NewWatcher(cfg.BundlePath, store, log)
		if err != nil {
			log.Fatal().Err(err).Msg("bundle")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
		log.Info().Str("path", cfg.BundlePath).Msg("serving from bundle")
	}

	if cfg.UpstreamURL != "" {
		f := fetcher.New(store, fetcher.Options{
			URL:         cfg.UpstreamURL,
			Environment: cfg.Environment,
			Reference:   cfg.Reference,
			ClientToken: cfg.ClientToken,
			Interval:    cfg.SyncInterval,
			Timeout:     cfg.RequestTimeout,
			Mode:        fetcher.Mode(cfg.SyncMode),
			Logger:      log,
			Metrics:     metrics,
		})
		if err := f.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial sync failed, starting unready")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Run(ctx)
		}()
		log.Info().Str("upstream", cfg.UpstreamURL).Str("mode", cfg.SyncMode).Msg("syncing from upstream")
	}

	server := api.NewServer(store, log, metrics, registry)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = srv.Shutdown(ctxShut)
	cancel()
	wg.Wait()
	log.Info().Msg("stopped")
}
