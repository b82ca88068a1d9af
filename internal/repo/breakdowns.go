package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// ErrBreakdownNotFound indicates no persisted breakdown exists for the cart.
var ErrBreakdownNotFound = errors.New("repo: breakdown not found")

// BreakdownStore persists computed breakdowns for audit and replay. Redis
// serves the hot read path; this table is the durable history.
type BreakdownStore struct {
	Pool *pgxpool.Pool
}

// NewBreakdownStore constructs a BreakdownStore backed by a pgx connection pool.
func NewBreakdownStore(pool *pgxpool.Pool) *BreakdownStore {
	return &BreakdownStore{Pool: pool}
}

// Insert appends a breakdown to the history and returns the row identifier.
func (s *BreakdownStore) Insert(ctx context.Context, b pricing.Breakdown) (uuid.UUID, error) {
	if s == nil || s.Pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	doc, err := json.Marshal(b.Document)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo: encode breakdown document: %w", err)
	}
	var id uuid.UUID
	err = s.Pool.QueryRow(ctx, `
INSERT INTO price_breakdowns (cart_id, digest, trigger, document, computed_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		b.Document.CartID, b.Digest, b.Trigger, doc, b.ComputedAt, b.ExpiresAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo: insert breakdown: %w", err)
	}
	return id, nil
}

// Latest returns the most recently computed breakdown for the cart.
func (s *BreakdownStore) Latest(ctx context.Context, cartID uuid.UUID) (pricing.Breakdown, error) {
	if s == nil || s.Pool == nil {
		return pricing.Breakdown{}, ErrStoreUnavailable
	}
	row := s.Pool.QueryRow(ctx, `
SELECT digest, trigger, document, computed_at, expires_at
FROM price_breakdowns
WHERE cart_id = $1
ORDER BY computed_at DESC
LIMIT 1`, cartID)

	var (
		b   pricing.Breakdown
		doc []byte
	)
	if err := row.Scan(&b.Digest, &b.Trigger, &doc, &b.ComputedAt, &b.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Breakdown{}, ErrBreakdownNotFound
		}
		return pricing.Breakdown{}, fmt.Errorf("repo: query breakdown: %w", err)
	}
	if err := json.Unmarshal(doc, &b.Document); err != nil {
		return pricing.Breakdown{}, fmt.Errorf("repo: decode breakdown document: %w", err)
	}
	return b, nil
}
