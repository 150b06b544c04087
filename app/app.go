// Package app wires configuration, the route table, metrics, and the
// worker pool together and runs them to completion under a
// golang.org/x/sync/errgroup-supervised context: SIGINT/SIGTERM cancels
// the shared context, every worker observes it at the top of its loop
// and unwinds, and Run returns once they have all exited.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Happensit/bff/config"
	"github.com/Happensit/bff/core"
	"github.com/Happensit/bff/core/metrics"
	"github.com/Happensit/bff/core/pools"
	"github.com/Happensit/bff/core/routes"
)

// App owns the process's workers and the metrics HTTP server, if one
// is configured.
type App struct {
	cfg   *config.Config
	log   zerolog.Logger
	hooks *metrics.Prometheus
	table *routes.Table
}

// New builds an App from a loaded Config. log is the root zerolog
// logger; a child logger is derived per worker. table defaults to the
// server's fixed route set when nil.
func New(cfg *config.Config, log zerolog.Logger, table *routes.Table) *App {
	if table == nil {
		table = routes.Default()
	}
	return &App{
		cfg:   cfg,
		log:   log,
		hooks: metrics.NewPrometheus(prometheus.NewRegistry()),
		table: table,
	}
}

// Run starts the worker pool and an optional metrics HTTP server, and
// blocks until ctx is cancelled or a worker returns a fatal error, at
// which point every goroutine is asked to unwind and Run waits for
// that to complete before returning.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools.ApplyGCConfig(pools.DefaultGCConfig())

	workerCount := a.cfg.Workers
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}

	workerCfg := core.DefaultWorkerConfig()
	workerCfg.RequestTimeout = a.cfg.RequestTimeout
	workerCfg.KeepAliveTimeout = a.cfg.KeepAliveTimeout
	workerCfg.LocalPoolSize = a.cfg.LocalPoolSize
	workerCfg.RepeatedByteGuard = a.cfg.RepeatedByteGuard

	fallback := pools.NewFallback[core.Connection, *core.Connection](a.cfg.FallbackPoolSize)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workerCount; i++ {
		id := i
		lfd, err := core.NewListener(a.cfg.Port, 0)
		if err != nil {
			return fmt.Errorf("worker %d: bind port %d: %w", id, a.cfg.Port, err)
		}

		wlog := a.log.With().Int("worker", id).Logger()
		w, err := core.NewWorker(id, lfd, workerCfg, fallback, a.table, a.hooks, zerologAdapter{wlog})
		if err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}

		g.Go(func() error {
			wlog.Info().Msg("worker started")
			err := w.Run(gctx)
			wlog.Info().Err(err).Msg("worker stopped")
			return err
		})
	}

	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return a.runMetricsServer(gctx) })
	}

	a.log.Info().Int("workers", workerCount).Int("port", a.cfg.Port).Msg("bff started")
	err := g.Wait()
	a.log.Info().Msg("bff stopped")
	return err
}

// runMetricsServer exposes /metrics on cfg.MetricsAddr until ctx is
// cancelled, then shuts it down gracefully.
func (a *App) runMetricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.hooks.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
