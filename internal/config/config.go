package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	CORSAllowedOrigins []string

	CurrencyCode      string
	RoundingMode      money.Mode
	RoundingIncrement int64

	ResolverStopOnFirstMatch bool

	PriceExpiration  time.Duration
	StoreSnapshots   bool
	IdempotencyTTL   time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	RepriceRateLimit     string
	RepricePerCartLimit  int
	RepricePerCartWindow time.Duration
	BulkRepriceBatch     int
	WorkerConcurrency    int
	MigrationsPath       string
	RunMigrations        bool
	ShutdownGracePeriod  time.Duration

	CatalogCacheTTL time.Duration
	MaxBodyBytes    int64

	WebhookDeliveryEnabled  bool
	WebhookRequestTimeout   time.Duration
	WebhookAllowInsecureTLS bool
	WebhookReplayTTL        time.Duration

	OutboundTimeout           time.Duration
	RetryBase                 time.Duration
	RetryMaxAttempts          int
	RetryJitterPercent        float64
	CircuitWebhookMinReq      int
	CircuitWebhookFailureRate float64
	CircuitWebhookOpenFor     time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	mode, err := money.ParseMode(valueOrDefault(k.String("PRICING_ROUNDING_MODE"), "round"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_ROUNDING_MODE: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CurrencyCode:      valueOrDefault(k.String("PRICING_CURRENCY"), "EUR"),
		RoundingMode:      mode,
		RoundingIncrement: parseInt64(k.String("PRICING_ROUNDING_INCREMENT"), 1),

		ResolverStopOnFirstMatch: parseBool(valueOrDefault(k.String("PRICING_STOP_ON_FIRST_MATCH"), "true")),

		PriceExpiration:  parseDuration(k.String("PRICING_EXPIRATION"), "24h"),
		StoreSnapshots:   parseBool(valueOrDefault(k.String("PRICING_STORE_SNAPSHOTS"), "true")),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		LockTTL:          parseDuration(k.String("REPRICE_LOCK_TTL"), "30s"),
		LockRetryBackoff: parseDuration(k.String("REPRICE_LOCK_RETRY_BACKOFF"), "50ms"),

		RepriceRateLimit:     valueOrDefault(k.String("REPRICE_RATE_LIMIT"), "60-M"),
		RepricePerCartLimit:  int(parseInt64(k.String("REPRICE_PER_CART_LIMIT"), 12)),
		RepricePerCartWindow: parseDuration(k.String("REPRICE_PER_CART_WINDOW"), "1m"),
		BulkRepriceBatch:     int(parseInt64(k.String("REPRICE_BULK_BATCH"), 100)),
		WorkerConcurrency:    int(parseInt64(k.String("WORKER_CONCURRENCY"), 4)),
		MigrationsPath:       valueOrDefault(k.String("MIGRATIONS_PATH"), "file://migrations"),
		RunMigrations:        parseBool(valueOrDefault(k.String("RUN_MIGRATIONS"), "false")),
		ShutdownGracePeriod:  parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "10s"),

		CatalogCacheTTL: parseDuration(k.String("PRICING_CATALOG_CACHE_TTL"), "5m"),
		MaxBodyBytes:    parseInt64(k.String("SECURE_MAX_BODY_BYTES"), 1<<20),

		WebhookDeliveryEnabled:  parseBool(valueOrDefault(k.String("WEBHOOK_DELIVERY_ENABLED"), "true")),
		WebhookRequestTimeout:   parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "5s"),
		WebhookAllowInsecureTLS: parseBool(k.String("WEBHOOK_ALLOW_INSECURE_TLS")),
		WebhookReplayTTL:        parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		OutboundTimeout:           parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		RetryBase:                 parseDuration(k.String("OUTBOUND_RETRY_BASE"), "200ms"),
		RetryMaxAttempts:          int(parseInt64(k.String("OUTBOUND_RETRY_MAX_ATTEMPTS"), 3)),
		RetryJitterPercent:        parseFloat(k.String("OUTBOUND_RETRY_JITTER_PERCENT"), 0.2),
		CircuitWebhookMinReq:      int(parseInt64(k.String("CIRCUIT_WEBHOOK_MIN_REQUESTS"), 10)),
		CircuitWebhookFailureRate: parseFloat(k.String("CIRCUIT_WEBHOOK_FAILURE_RATE"), 0.5),
		CircuitWebhookOpenFor:     parseDuration(k.String("CIRCUIT_WEBHOOK_OPEN_FOR"), "30s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RoundingIncrement < 1 {
		return nil, errors.New("PRICING_ROUNDING_INCREMENT must be at least 1")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Rounding returns the currency rounding applied by the final rounding step.
func (c *Config) Rounding() money.Rounding {
	return money.Rounding{Mode: c.RoundingMode, Increment: c.RoundingIncrement}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
