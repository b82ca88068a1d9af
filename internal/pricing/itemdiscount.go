package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/discount"
)

// ItemDiscountStep applies product-scoped discounts to individual lines.
// Stacking discounts compound: each one is computed against the already
// discounted line total, not the original price.
type ItemDiscountStep struct {
	Discounts DiscountSource
	Logger    *zerolog.Logger
}

// Name identifies the step in logs and error chains.
func (s ItemDiscountStep) Name() string { return "item_discount" }

// Apply records the pre-discount cart subtotal, then walks the active
// item-scoped discounts in deterministic order. A malformed definition
// contributes zero and is logged; it never fails the cart.
func (s ItemDiscountStep) Apply(ctx context.Context, pc *Context) error {
	for _, ln := range pc.Lines {
		pc.Subtotal += ln.CurrentPrice
	}
	if s.Discounts == nil {
		return nil
	}
	ds, err := s.Discounts.Discounts(ctx, discount.ScopeItem, pc.Now)
	if err != nil {
		return fmt.Errorf("load item discounts: %w", err)
	}
	discount.SortStable(ds)

	for _, ln := range pc.Lines {
		for _, d := range ds {
			if !d.InWindow(pc.Now) || !d.MatchesProduct(ln.PurchasableID) {
				continue
			}
			amount, err := d.Amount(ln.CurrentPrice)
			if err != nil {
				if errors.Is(err, discount.ErrInvalidConfig) {
					s.warn(d, err)
					continue
				}
				return fmt.Errorf("item discount %s: %w", d.ID, err)
			}
			if amount <= 0 {
				continue
			}
			ln.CurrentPrice -= amount
			pc.ItemDiscountTotal += amount
			ln.Record(AppliedRule{
				Type:       "item_discount",
				Identifier: d.ID.String(),
				Version:    d.Version,
				Amount:     amount,
				Extra:      map[string]string{"name": d.Name},
			})
		}
	}
	return nil
}

func (s ItemDiscountStep) warn(d discount.Discount, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn().
		Str("discount_id", d.ID.String()).
		Int32("discount_version", d.Version).
		Err(err).
		Msg("skipping malformed item discount")
}
