// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search events published by the searcher, aggregates them in
// memory (hit rate, latency percentiles, top and zero-result queries),
// snapshots the aggregate to Postgres, and serves both over HTTP.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka must be enabled to consume search events")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	store := aggregator.NewStore(pg.DB)
	if snap, err := store.LatestSnapshot(ctx); err != nil {
		slog.Warn("could not load previous snapshot", "error", err)
	} else if snap != nil {
		slog.Info("previous analytics snapshot",
			"captured_at", snap.CapturedAt,
			"total_searches", snap.Stats.TotalSearches,
			"cache_hit_rate", snap.Stats.CacheHitRate,
		)
	}

	agg := analytics.NewAggregator(cfg.Analytics.Window)
	eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eventConsumer.Start(gctx)
	})
	store.StartPeriodicSave(gctx, agg, cfg.Analytics.SnapshotInterval)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(pg.Ping, health.StatusDown))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", store.HistoryHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
