package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/cache"
	"github.com/noah-isme/backend-pricing/internal/config"
	"github.com/noah-isme/backend-pricing/internal/events"
	"github.com/noah-isme/backend-pricing/internal/lock"
	"github.com/noah-isme/backend-pricing/internal/notify"
	"github.com/noah-isme/backend-pricing/internal/obs"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/repo"
	"github.com/noah-isme/backend-pricing/internal/reprice"
	"github.com/noah-isme/backend-pricing/internal/resilience"
	"github.com/noah-isme/backend-pricing/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pricing")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(redisConn)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	catalog := &repo.CachedCatalog{
		Source: &repo.CatalogStore{Pool: pool},
		Cache:  cache.New(redisClient, cfg.CatalogCacheTTL),
	}
	breakdowns := &repo.BreakdownStore{Pool: pool}
	carts := &repo.CartSnapshotStore{Pool: pool}

	pipeline := pricing.New(pricing.Deps{
		Catalog:   catalog,
		Contracts: &repo.ContractStore{Pool: pool},
		Tiers:     &repo.TierStore{Pool: pool},
		Discounts: &repo.DiscountStore{Pool: pool},
		TaxRates:  &repo.TaxRateStore{Pool: pool},
		Rounding:  cfg.Rounding(),
		Resolver:  pricing.Resolver{Weights: pricing.DefaultWeights(), StopOnFirstMatch: cfg.ResolverStopOnFirstMatch},
		Logger:    &logger,
	})

	dispatcher := &notify.Dispatcher{
		Store: notify.NewStore(pool),
		HTTP: &resilience.HTTPClient{
			Client:      notify.HttpClient(int(cfg.WebhookRequestTimeout/time.Millisecond), cfg.WebhookAllowInsecureTLS),
			Breaker:     resilience.NewBreaker(cfg.CircuitWebhookMinReq, cfg.CircuitWebhookFailureRate, cfg.CircuitWebhookOpenFor),
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
			Timeout:     cfg.OutboundTimeout,
			Target:      "webhook-delivery",
			Logger:      &logger,
		},
		Enabled:   cfg.WebhookDeliveryEnabled,
		Replay:    notify.RedisReplayProtector{Client: redisClient},
		ReplayTTL: cfg.WebhookReplayTTL,
	}
	bus := &events.Bus{Notifiers: []events.Notifier{dispatcher}}

	svc := &reprice.Service{
		Pipeline: pipeline,
		Locker: lock.Locker{
			R:            redisClient,
			RetryBackoff: cfg.LockRetryBackoff,
			OnContention: func() { obs.RepriceLockWait.Inc() },
		},
		LockTTL:      cfg.LockTTL,
		Validity:     cfg.PriceExpiration,
		Hot:          snapshot.NewStore(redisClient),
		History:      breakdowns,
		Carts:        carts,
		Events:       bus,
		Logger:       &logger,
		StoreHistory: cfg.StoreSnapshots,
	}

	tasks := &reprice.TaskHandler{
		Svc:       svc,
		Carts:     carts,
		Client:    taskClient,
		Logger:    &logger,
		BatchSize: cfg.BulkRepriceBatch,
	}

	mux := asynq.NewServeMux()
	tasks.Register(mux)

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: cfg.ShutdownGracePeriod,
	})

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pricing-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
