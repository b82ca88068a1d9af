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

// ErrSnapshotNotFound indicates no cart snapshot has been recorded yet.
var ErrSnapshotNotFound = errors.New("repo: cart snapshot not found")

// CartSnapshotStore keeps the last snapshot received per cart so scheduled
// and bulk reprice runs can replay a cart without the upstream caller.
type CartSnapshotStore struct {
	Pool *pgxpool.Pool
}

// NewCartSnapshotStore constructs a CartSnapshotStore backed by a pgx pool.
func NewCartSnapshotStore(pool *pgxpool.Pool) *CartSnapshotStore {
	return &CartSnapshotStore{Pool: pool}
}

// Upsert records the latest snapshot for the cart, replacing any prior one.
func (s *CartSnapshotStore) Upsert(ctx context.Context, snap pricing.CartSnapshot) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("repo: encode cart snapshot: %w", err)
	}
	_, err = s.Pool.Exec(ctx, `
INSERT INTO cart_snapshots (cart_id, snapshot, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (cart_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		snap.CartID, doc)
	if err != nil {
		return fmt.Errorf("repo: upsert cart snapshot: %w", err)
	}
	return nil
}

// Get returns the last recorded snapshot for the cart.
func (s *CartSnapshotStore) Get(ctx context.Context, cartID uuid.UUID) (pricing.CartSnapshot, error) {
	if s == nil || s.Pool == nil {
		return pricing.CartSnapshot{}, ErrStoreUnavailable
	}
	var doc []byte
	err := s.Pool.QueryRow(ctx, `SELECT snapshot FROM cart_snapshots WHERE cart_id = $1`, cartID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.CartSnapshot{}, ErrSnapshotNotFound
		}
		return pricing.CartSnapshot{}, fmt.Errorf("repo: query cart snapshot: %w", err)
	}
	var snap pricing.CartSnapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return pricing.CartSnapshot{}, fmt.Errorf("repo: decode cart snapshot: %w", err)
	}
	return snap, nil
}

// ListCartIDs pages through recorded cart identifiers in stable order. It is
// the iteration surface for bulk reprice fan-out.
func (s *CartSnapshotStore) ListCartIDs(ctx context.Context, limit int, after uuid.UUID) ([]uuid.UUID, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := s.Pool.Query(ctx, `
SELECT cart_id FROM cart_snapshots
WHERE cart_id > $1
ORDER BY cart_id ASC
LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list cart ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo: scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
