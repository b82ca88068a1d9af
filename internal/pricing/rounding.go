package pricing

import (
	"context"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// RoundingStep applies the currency's rounding mode to every line price and
// to each aggregated total independently, then derives the grand total from
// the already rounded components. The grand total is never re-rounded; that
// is what keeps displayed line totals and the displayed grand total from
// drifting by a cent.
type RoundingStep struct {
	Rounding money.Rounding
}

// Name identifies the step in logs and error chains.
func (s RoundingStep) Name() string { return "final_rounding" }

// Apply rounds lines and totals and computes
// grand_total = subtotal - discounts + tax + shipping.
func (s RoundingStep) Apply(_ context.Context, pc *Context) error {
	for _, ln := range pc.Lines {
		ln.CurrentPrice = s.Rounding.Apply(ln.CurrentPrice)
	}
	pc.Subtotal = s.Rounding.Apply(pc.Subtotal)
	pc.ItemDiscountTotal = s.Rounding.Apply(pc.ItemDiscountTotal)
	pc.CartDiscountTotal = s.Rounding.Apply(pc.CartDiscountTotal)
	pc.TaxTotal = s.Rounding.Apply(pc.TaxTotal)
	pc.ShippingTotal = s.Rounding.Apply(pc.ShippingTotal)

	pc.GrandTotal = money.Clamp(pc.Subtotal - pc.DiscountTotal() + pc.TaxTotal + pc.ShippingTotal)
	return nil
}
