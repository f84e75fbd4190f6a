// Command gateway starts the multi-tenant search API gateway.
//
// The gateway is the single entry point for external clients. It issues and
// validates tenant tokens, applies per-tenant rate limiting, and orchestrates
// document indexing and full-text search against the configured backend
// (Elasticsearch or the embedded in-memory engine). Optionally it caches
// search responses in Redis and publishes analytics events to Kafka.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/analytics"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/ratelimit"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/token"
	gwhandler "github.com/jasvant6thstreet/distributed-search-elastic/internal/gateway/handler"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/gateway/router"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search/cache"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search/elastic"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search/memory"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/config"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/health"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/kafka"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/logger"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/metrics"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/redis"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/resilience"
)

// main wires config → engine → orchestrator → token service + rate limiter →
// router, starts the HTTP and metrics servers, and shuts both down on
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search gateway",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.Type,
	)

	prom := metrics.New(nil)
	checker := health.NewChecker()

	// Search engine backend.
	var engine search.Engine
	switch cfg.Backend.Type {
	case config.BackendElasticsearch:
		es := elastic.NewClient(cfg.Backend.Elasticsearch)

		// Probe the cluster with backoff; an unreachable cluster at boot is
		// reported but not fatal, the health endpoint will keep flagging it.
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := resilience.Retry(probeCtx, "elasticsearch ping", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			return es.Ping(probeCtx)
		}); err != nil {
			slog.Warn("elasticsearch unreachable at startup", "error", err)
		}
		cancel()

		checker.Register("elasticsearch", func(ctx context.Context) health.ComponentHealth {
			if err := es.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		engine = es
		slog.Info("using elasticsearch backend", "url", cfg.Backend.Elasticsearch.URL())
	case config.BackendMemory:
		engine = memory.NewEngine()
		checker.Register("memory-engine", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp}
		})
		slog.Info("using embedded in-memory backend")
	}

	opts := []search.Option{
		search.WithPrometheus(prom),
		search.WithCallTimeout(cfg.Backend.RequestTimeout),
	}

	// Optional Redis query cache.
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		opts = append(opts, search.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL)))
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// Optional Kafka analytics events.
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsEvents)
		publisher := analytics.NewPublisher(producer)
		defer publisher.Close()
		opts = append(opts, search.WithAnalytics(publisher))
		slog.Info("analytics events enabled",
			"brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AnalyticsEvents)
	}

	searchSvc := search.NewService(engine, opts...)
	tokens := token.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	limiter := ratelimit.New(cfg.RateLimit.PermitsPerSecond)

	h := gwhandler.New(searchSvc, tokens, checker, cfg.Backend.Type)
	chain := router.New(h, tokens, limiter, prom, cfg.Server.RequestTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search gateway stopped")
}
