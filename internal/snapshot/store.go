// Package snapshot keeps the latest computed breakdown per cart in Redis.
// Consumers read from here on the hot path; Postgres keeps the full history.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

const keyPrefix = "pricing:breakdown:cart:"

// Key returns the Redis key holding the latest breakdown for a cart.
func Key(cartID uuid.UUID) string {
	return keyPrefix + cartID.String()
}

// Store reads and writes breakdowns with a TTL matching their validity.
type Store struct {
	Client *redis.Client
	Now    func() time.Time
}

// NewStore constructs a Store around a Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Put stores the breakdown under the cart key. The entry expires together
// with the breakdown so Redis never serves a price past its validity window.
func (s *Store) Put(ctx context.Context, b pricing.Breakdown) error {
	if s == nil || s.Client == nil {
		return nil
	}
	ttl := b.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("snapshot: breakdown for cart %s already expired", b.Document.CartID)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("snapshot: encode breakdown: %w", err)
	}
	if err := s.Client.Set(ctx, Key(b.Document.CartID), data, ttl).Err(); err != nil {
		return fmt.Errorf("snapshot: store breakdown: %w", err)
	}
	return nil
}

// Get returns the stored breakdown and reports whether one existed. An entry
// past its validity window counts as absent even if Redis has not evicted it
// yet.
func (s *Store) Get(ctx context.Context, cartID uuid.UUID) (pricing.Breakdown, bool, error) {
	if s == nil || s.Client == nil {
		return pricing.Breakdown{}, false, nil
	}
	data, err := s.Client.Get(ctx, Key(cartID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return pricing.Breakdown{}, false, nil
		}
		return pricing.Breakdown{}, false, fmt.Errorf("snapshot: load breakdown: %w", err)
	}
	var b pricing.Breakdown
	if err := json.Unmarshal(data, &b); err != nil {
		return pricing.Breakdown{}, false, fmt.Errorf("snapshot: decode breakdown: %w", err)
	}
	if b.Expired(s.now()) {
		return pricing.Breakdown{}, false, nil
	}
	return b, true, nil
}

// Invalidate drops the stored breakdown, forcing the next read to reprice.
func (s *Store) Invalidate(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Client == nil {
		return nil
	}
	if err := s.Client.Del(ctx, Key(cartID)).Err(); err != nil {
		return fmt.Errorf("snapshot: invalidate breakdown: %w", err)
	}
	return nil
}
