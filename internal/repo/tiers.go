package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// TierStore resolves quantity-break prices from the tier_matrices table.
type TierStore struct {
	Pool *pgxpool.Pool
}

// NewTierStore constructs a TierStore backed by a pgx connection pool.
func NewTierStore(pool *pgxpool.Pool) *TierStore {
	return &TierStore{Pool: pool}
}

// TierPrice returns the tier with the highest quantity threshold that the line
// quantity still reaches. Rows scoped to the cart's customer group shadow
// unscoped rows at the same threshold. A nil result means no tier applies.
func (s *TierStore) TierPrice(ctx context.Context, purchasableID uuid.UUID, qty int32, customerGroup, currency string) (*pricing.TierPrice, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	row := s.Pool.QueryRow(ctx, `
SELECT id, tier_name, min_qty, unit_price, version
FROM tier_matrices
WHERE purchasable_id = $1
  AND currency = $2
  AND active
  AND min_qty <= $3
  AND (customer_group IS NULL OR customer_group = $4)
ORDER BY min_qty DESC, customer_group DESC NULLS LAST
LIMIT 1`, purchasableID, currency, qty, customerGroup)

	var tp pricing.TierPrice
	if err := row.Scan(&tp.MatrixID, &tp.TierName, &tp.MinQty, &tp.UnitPrice, &tp.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo: query tier price: %w", err)
	}
	return &tp, nil
}
