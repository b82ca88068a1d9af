package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// TaxRateStore resolves tax rates from the shipping destination. Rates are
// keyed on country, optional province, tax class and currency. The most
// specific matching row wins; no row at all means the line is tax exempt.
type TaxRateStore struct {
	Pool *pgxpool.Pool
}

// NewTaxRateStore constructs a TaxRateStore backed by a pgx connection pool.
func NewTaxRateStore(pool *pgxpool.Pool) *TaxRateStore {
	return &TaxRateStore{Pool: pool}
}

var _ pricing.TaxRateSource = (*TaxRateStore)(nil)

// TaxRate returns the applicable rate or nil when no zone covers the address.
func (s *TaxRateStore) TaxRate(ctx context.Context, addr pricing.Address, taxClass, currency string) (*pricing.TaxRate, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	row := s.Pool.QueryRow(ctx, `
SELECT rate_bps, name
FROM tax_rates
WHERE country = $1
  AND (province IS NULL OR province = $2)
  AND tax_class = $3
  AND currency = $4
  AND active
ORDER BY province NULLS LAST
LIMIT 1`, addr.Country, addr.Province, taxClass, currency)

	var rate pricing.TaxRate
	if err := row.Scan(&rate.RateBps, &rate.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo: query tax rate: %w", err)
	}
	return &rate, nil
}
