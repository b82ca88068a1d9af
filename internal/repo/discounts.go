package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/discount"
	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// DiscountStore loads discount definitions for one pipeline run. Restrictions
// such as coupon codes, customer groups and minimum cart values are evaluated
// by the steps, not here; only scope and the activity window filter in SQL.
type DiscountStore struct {
	Pool *pgxpool.Pool
}

// NewDiscountStore constructs a DiscountStore backed by a pgx connection pool.
func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{Pool: pool}
}

var _ pricing.DiscountSource = (*DiscountStore)(nil)

// Discounts returns the discounts of the given scope active at the instant.
func (s *DiscountStore) Discounts(ctx context.Context, scope discount.Scope, at time.Time) ([]discount.Discount, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, version, COALESCE(code, ''), name, scope, kind, value, percent_bps,
       max_amount, min_cart_value, active, starts_at, ends_at,
       customer_groups, product_ids, priority
FROM discounts
WHERE scope = $1
  AND active
  AND (starts_at IS NULL OR starts_at <= $2)
  AND (ends_at IS NULL OR ends_at >= $2)
ORDER BY priority ASC, id ASC`, string(scope), at)
	if err != nil {
		return nil, fmt.Errorf("repo: query discounts: %w", err)
	}
	defer rows.Close()

	var out []discount.Discount
	for rows.Next() {
		var d discount.Discount
		if err := rows.Scan(
			&d.ID, &d.Version, &d.Code, &d.Name, &d.Scope, &d.Kind, &d.Value,
			&d.PercentBps, &d.MaxAmount, &d.MinCartValue, &d.Active,
			&d.StartsAt, &d.EndsAt, &d.CustomerGroups, &d.ProductIDs, &d.Priority,
		); err != nil {
			return nil, fmt.Errorf("repo: scan discount: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: read discounts: %w", err)
	}
	return out, nil
}
