// Command searcher serves keyword search over community posts.
//
// It builds the inverted index from Postgres at startup, answers queries
// through the result cache (Redis, or an in-process LRU when Redis is
// unreachable), keeps the index current from Kafka post events when Kafka
// is enabled, and publishes search analytics.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/post-search/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "kafka_enabled", cfg.Kafka.Enabled)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	postStore := posts.NewStore(pg.DB, cfg.Postgres.QueryTimeout)

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		return fmt.Errorf("creating index engine: %w", err)
	}
	if _, err := engine.Build(ctx, postStore); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	store, redisClient := newCacheStore(ctx, cfg, m)
	if redisClient != nil {
		defer redisClient.Close()
	}

	exec := executor.New(engine, postStore, m)
	agg := analytics.NewAggregator(cfg.Analytics.Window)
	queryCache := cache.New(store, exec, cfg.Cache, cache.MultiSink{m, agg})

	g, gctx := errgroup.WithContext(ctx)

	trackers := analytics.Trackers{agg}
	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, analytics.CollectorConfig{
			BufferSize:    cfg.Analytics.BufferSize,
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		})
		collector.Start(gctx)
		trackers = append(trackers, collector)

		// Every replica holds a full index, so each needs its own group.
		indexKafka := cfg.Kafka
		host, _ := os.Hostname()
		indexKafka.ConsumerGroup = fmt.Sprintf("%s-index-%s", cfg.Kafka.ConsumerGroup, host)
		indexConsumer := consumer.New(kafka.NewConsumer(
			indexKafka,
			cfg.Kafka.Topics.PostEvents,
			consumer.HandleMessage(engine),
		))
		g.Go(func() error {
			return indexConsumer.Start(gctx)
		})
	}

	engine.StartOptimizeLoop(gctx)

	limiter := ratelimit.New(cfg.Search.RateLimitPerMin, time.Minute)
	limiter.StartCleanup(gctx)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(pg.Ping, health.StatusDown))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
	} else {
		checker.Register("redis", health.Static(health.StatusDegraded, "using in-process cache"))
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d posts, %d terms", stats.DocsIndexed, stats.IndexSize),
		}
	})

	h := handler.New(queryCache, engine, postStore, trackers, cfg.Search, cfg.Tracing.Enabled)
	analyticsH := analytics.NewHandler(agg)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.RateLimit(limiter, "/api/v1/search", m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
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

	err = g.Wait()
	if collector != nil {
		collector.Close()
		if n := collector.Dropped(); n > 0 {
			slog.Warn("analytics events dropped", "count", n)
		}
	}
	return err
}

// newCacheStore connects to Redis and falls back to an in-process LRU when
// Redis is unreachable. The returned client is nil on fallback.
func newCacheStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (cache.Store, *pkgredis.Client) {
	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, using in-process cache",
			"addr", cfg.Redis.Addr,
			"size", cfg.Cache.LocalSize,
			"error", err,
		)
		return cache.NewMemoryStore(cfg.Cache.LocalSize, cfg.Cache.TTL), nil
	}
	slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
	return cache.NewRedisStore(client, cfg.Cache, m), client
}
