package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Alexander-D-Karpov/huddle/internal/admin"
	"github.com/Alexander-D-Karpov/huddle/internal/audit"
	"github.com/Alexander-D-Karpov/huddle/internal/auth/interceptor"
	"github.com/Alexander-D-Karpov/huddle/internal/auth/jwt"
	"github.com/Alexander-D-Karpov/huddle/internal/bans"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/circuitbreaker"
	"github.com/Alexander-D-Karpov/huddle/internal/common/config"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/Alexander-D-Karpov/huddle/internal/gateway"
	"github.com/Alexander-D-Karpov/huddle/internal/infra"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/db"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/migrations"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/observability"
	"github.com/Alexander-D-Karpov/huddle/internal/ratelimit"
	"github.com/Alexander-D-Karpov/huddle/internal/stream"
	"github.com/Alexander-D-Karpov/huddle/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting huddle-api",
		zap.String("version", version.Full()),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", string(cfg.Chat.Store)),
		zap.String("feed_mode", string(cfg.Feed.Mode)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(logger)
	healthChecker := observability.NewHealthChecker(logger, version.String())
	snowflakeGen := infra.NewSnowflakeGenerator(int64(cfg.Server.NodeID))

	var (
		messageStore messages.Store
		banStore     bans.Store
	)
	switch cfg.Chat.Store {
	case config.StorePostgres:
		database, err := db.New(ctx, cfg.Database, logger, db.DefaultOptions())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		logger.Info("connected to database")

		if err := migrations.Run(ctx, database.Pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied successfully")

		healthChecker.RegisterCheck("database", observability.PingCheck(database.Health, false))
		go db.NewPoolMonitor(database.Pool, logger, metrics, 30*time.Second).Run(ctx)

		messageStore = messages.NewPostgresStore(database.Pool, snowflakeGen)
		banStore = bans.NewPostgresStore(database.Pool)
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		messageStore = messages.NewMemoryStore(snowflakeGen, nil)
		banStore = bans.NewMemoryStore(nil)
	}

	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(cfg.Redis)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			}()
			healthChecker.RegisterCheck("redis", observability.PingCheck(cacheClient.Ping, true))
			logger.Info("connected to Redis")
		}
	}

	var broker events.Broker
	if cacheClient != nil {
		broker = events.NewRedisBroker(cacheClient.Client(), cfg.Feed.Channel, logger)
	} else {
		broker = events.NewHub(logger)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("failed to close event broker", zap.Error(err))
		}
	}()

	var aside *cache.AsidePattern
	if cacheClient != nil {
		aside = cache.NewAsidePattern(cacheClient, cache.NewMetrics())
		metrics.RegisterCacheStats("bans", aside.Metrics().Stats)
	}

	banRegistry := bans.NewRegistry(banStore, logger,
		bans.WithCache(aside, cfg.Chat.BanCacheTTL),
		bans.WithDefaultReason(cfg.Chat.DefaultBanReason),
	)
	if cacheClient != nil {
		warmed, err := banRegistry.Warm(ctx, cache.NewWarmer(cacheClient, logger))
		if err != nil {
			logger.Warn("failed to warm ban cache", zap.Error(err))
		} else {
			logger.Info("ban cache warmed", zap.Int("users", warmed))
		}
	}

	rateLimiter := ratelimit.NewLimiter(
		cacheClient,
		cfg.RateLimit.PostsPerMinute,
		cfg.RateLimit.Burst,
		cfg.RateLimit.Enabled,
		logger,
	)
	defer rateLimiter.Close()

	chatService := chat.NewService(messageStore, banRegistry, broker, logger,
		chat.WithLimiter(rateLimiter),
		chat.WithMetrics(metrics),
		chat.WithMaxBodyLength(cfg.Chat.MaxBodyLength),
	)
	adminService := admin.NewService(chatService, banRegistry, audit.NewLogger(logger), broker,
		admin.WithMetrics(metrics),
	)

	feed := newFeed(cfg.Feed, messageStore, broker, metrics, logger)

	location, err := cfg.Chat.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	jwtManager := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	httpGateway := gateway.New(logger, gateway.Handlers{
		Chat:   chat.NewHandler(chatService, location),
		Admin:  admin.NewHandler(adminService),
		Stream: stream.NewHandler(feed, location, metrics),
	}, gateway.Options{
		Auth:           interceptor.NewAuthInterceptor(jwtManager),
		Limiter:        rateLimiter,
		Metrics:        metrics,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	errChan := make(chan error, 3)
	var servers sync.WaitGroup
	serve := func(name string, start func() error) {
		servers.Add(1)
		go func() {
			defer servers.Done()
			if err := start(); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	serve("metrics server", func() error { return metrics.Start(ctx, cfg.Server.MetricsPort) })
	serve("health server", func() error { return healthChecker.Start(ctx, cfg.Server.HealthPort) })
	serve("http gateway", func() error { return httpGateway.Start(ctx, cfg.Server) })

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("shutting down gracefully...")
	cancel()
	servers.Wait()
	logger.Info("shutdown complete")

	return nil
}

func newFeed(cfg config.FeedConfig, store messages.Store, broker events.Broker, metrics *observability.Metrics, logger *zap.Logger) messages.Feed {
	if cfg.Mode == config.FeedModePush {
		logger.Info("conversation feed in push mode")
		return messages.NewPushFeed(store, broker, logger, metrics.ObserveFeedRefresh)
	}

	breaker := circuitbreaker.New(5, 30*time.Second, circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
		metrics.RecordBreakerState("feed", int(to))
		logger.Warn("feed circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}))
	logger.Info("conversation feed in polling mode", zap.Duration("interval", cfg.PollInterval))
	return messages.NewPollingFeed(store, cfg.PollInterval, breaker, logger, metrics.ObserveFeedRefresh)
}
