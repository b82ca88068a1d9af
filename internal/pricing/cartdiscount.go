package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/discount"
	"github.com/noah-isme/backend-pricing/internal/money"
)

// ErrDistributionViolation indicates distributed cart-discount allocations do
// not sum to the discount amount. Correct distribution code cannot produce
// it; surfacing it means a bug, not bad input.
var ErrDistributionViolation = errors.New("cart discount distribution does not sum to discount amount")

// CartDiscountStep applies cart-level discounts: the coupon matching the
// cart's code plus automatic cart-wide discounts whose restrictions the cart
// meets. Each amount is distributed across lines proportional to their share
// of the subtotal; no cent may be lost or fabricated in distribution.
type CartDiscountStep struct {
	Discounts DiscountSource
	Logger    *zerolog.Logger
}

// Name identifies the step in logs and error chains.
func (s CartDiscountStep) Name() string { return "cart_discount" }

// Apply evaluates qualifying cart discounts sequentially, each against the
// already reduced subtotal, and allocates every amount exactly.
func (s CartDiscountStep) Apply(ctx context.Context, pc *Context) error {
	if s.Discounts == nil {
		return nil
	}
	ds, err := s.Discounts.Discounts(ctx, discount.ScopeCart, pc.Now)
	if err != nil {
		return fmt.Errorf("load cart discounts: %w", err)
	}
	discount.SortStable(ds)

	for _, d := range ds {
		if !d.InWindow(pc.Now) {
			continue
		}
		if d.Code != "" && d.Code != pc.Snapshot.CouponCode {
			continue
		}
		basis := lineTotalSum(pc.Lines)
		if basis <= 0 {
			break
		}
		if err := d.AppliesToCart(basis, pc.Snapshot.CustomerGroup); err != nil {
			continue
		}
		amount, err := d.Amount(basis)
		if err != nil {
			if errors.Is(err, discount.ErrInvalidConfig) {
				s.warn(d, err)
				continue
			}
			return fmt.Errorf("cart discount %s: %w", d.ID, err)
		}
		if amount <= 0 {
			continue
		}
		dist, err := distribute(amount, basis, pc.Lines)
		if err != nil {
			return fmt.Errorf("cart discount %s: %w", d.ID, err)
		}
		applied := AppliedCartDiscount{
			DiscountID:   d.ID,
			Version:      d.Version,
			Name:         d.Name,
			Amount:       amount,
			Distribution: make(map[string]money.Money, len(dist)),
		}
		for i, ln := range pc.Lines {
			alloc := dist[i]
			applied.Distribution[ln.ID.String()] = alloc
			if alloc == 0 {
				continue
			}
			ln.CurrentPrice = money.Clamp(ln.CurrentPrice - alloc)
			ln.Record(AppliedRule{
				Type:       "cart_discount",
				Identifier: d.ID.String(),
				Version:    d.Version,
				Amount:     alloc,
				Extra:      map[string]string{"name": d.Name},
			})
		}
		pc.CartDiscountTotal += amount
		pc.CartDiscounts = append(pc.CartDiscounts, applied)
	}
	return nil
}

// distribute splits amount across lines proportional to each line's share of
// basis. Allocations round down and the residual cents go to the first line
// so the parts always sum exactly to amount.
func distribute(amount, basis money.Money, lines []*Line) ([]money.Money, error) {
	out := make([]money.Money, len(lines))
	var allocated money.Money
	for i, ln := range lines {
		share := amount * ln.CurrentPrice / basis
		out[i] = share
		allocated += share
	}
	if residual := amount - allocated; residual != 0 {
		if residual < 0 {
			return nil, ErrDistributionViolation
		}
		out[0] += residual
		allocated += residual
	}
	if allocated != amount {
		return nil, ErrDistributionViolation
	}
	return out, nil
}

func lineTotalSum(lines []*Line) money.Money {
	var total money.Money
	for _, ln := range lines {
		total += ln.CurrentPrice
	}
	return total
}

func (s CartDiscountStep) warn(d discount.Discount, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn().
		Str("discount_id", d.ID.String()).
		Int32("discount_version", d.Version).
		Err(err).
		Msg("skipping malformed cart discount")
}
