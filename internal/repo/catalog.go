package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// CatalogStore reads tagged price candidates from the catalog_prices table.
// Each row carries the source it prices for; the resolver decides which one
// wins. Variant-level rows shadow purchasable-level rows for the same source.
type CatalogStore struct {
	Pool *pgxpool.Pool
}

// NewCatalogStore constructs a CatalogStore backed by a pgx connection pool.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{Pool: pool}
}

// Candidates returns the active price candidates for one cart line. Rows whose
// channel or customer group restriction does not match the snapshot are
// filtered out in SQL. A line with no rows at all yields an empty slice; the
// resolver turns that into its unpriceable error.
func (s *CatalogStore) Candidates(ctx context.Context, snap pricing.CartSnapshot, line pricing.LineInput) ([]pricing.Candidate, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.Pool.Query(ctx, `
SELECT source, unit_price, variant_id IS NOT NULL AS variant_scoped
FROM catalog_prices
WHERE purchasable_id = $1
  AND (variant_id IS NULL OR variant_id = $2)
  AND currency = $3
  AND active
  AND (channel IS NULL OR channel = $4)
  AND (customer_group IS NULL OR customer_group = $5)
  AND (starts_at IS NULL OR starts_at <= now())
  AND (ends_at IS NULL OR ends_at > now())
ORDER BY source, variant_scoped ASC`,
		line.PurchasableID, line.VariantID, snap.Currency, snap.Channel, snap.CustomerGroup)
	if err != nil {
		return nil, fmt.Errorf("repo: query catalog prices: %w", err)
	}
	defer rows.Close()

	// Later rows for the same source overwrite earlier ones, so the
	// variant-scoped row wins over the purchasable-level row.
	bySource := make(map[pricing.Source]money.Money)
	order := make([]pricing.Source, 0, 5)
	for rows.Next() {
		var (
			source        string
			unitPrice     int64
			variantScoped bool
		)
		if err := rows.Scan(&source, &unitPrice, &variantScoped); err != nil {
			return nil, fmt.Errorf("repo: scan catalog price: %w", err)
		}
		src := pricing.Source(source)
		if _, seen := bySource[src]; !seen {
			order = append(order, src)
		}
		bySource[src] = money.Money(unitPrice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: read catalog prices: %w", err)
	}

	candidates := make([]pricing.Candidate, 0, len(order))
	for _, src := range order {
		price := bySource[src]
		candidates = append(candidates, pricing.Candidate{Source: src, UnitPrice: &price})
	}
	return candidates, nil
}
