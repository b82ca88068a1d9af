package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// ContractStore resolves negotiated B2B unit prices. When several contracts
// overlap for the same customer and purchasable, the cheapest active one wins.
type ContractStore struct {
	Pool *pgxpool.Pool
}

// NewContractStore constructs a ContractStore backed by a pgx connection pool.
func NewContractStore(pool *pgxpool.Pool) *ContractStore {
	return &ContractStore{Pool: pool}
}

// ContractPrice returns the contract price valid at the given instant, or nil
// when the customer holds no active contract for the purchasable.
func (s *ContractStore) ContractPrice(ctx context.Context, customerID, purchasableID uuid.UUID, at time.Time) (*pricing.ContractPrice, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	row := s.Pool.QueryRow(ctx, `
SELECT id, unit_price, version
FROM contract_prices
WHERE customer_id = $1
  AND purchasable_id = $2
  AND active
  AND starts_at <= $3
  AND (ends_at IS NULL OR ends_at > $3)
ORDER BY unit_price ASC, version DESC
LIMIT 1`, customerID, purchasableID, at)

	var cp pricing.ContractPrice
	if err := row.Scan(&cp.ContractID, &cp.UnitPrice, &cp.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo: query contract price: %w", err)
	}
	return &cp, nil
}
