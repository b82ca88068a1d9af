// Package ratelimit bounds reprice churn. A global per-client limit sits in
// front of the API; this limiter adds a per-cart sliding window so a single
// hot cart cannot monopolize the pipeline.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a limiter check for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding-window limiter over Redis sorted sets. Each request
// becomes a scored member; the window slides by trimming members older than
// the window before counting, so a cart that bursts stays throttled until
// its earliest request ages out.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow registers one request under the key and decides whether it fits the
// window. A nil client or non-positive bounds disable limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, ResetAt: now.Add(window)}, nil
	}

	resetAt := now.Add(window)
	cutoff := float64(now.Add(-window).UnixNano())
	redisKey := l.Prefix + key

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{ResetAt: resetAt}, err
	}

	current := int(countCmd.Val())
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: current <= max, Remaining: remaining, ResetAt: resetAt}, nil
}
