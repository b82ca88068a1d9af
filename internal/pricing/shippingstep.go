package pricing

import "context"

// ShippingStep captures the upstream-computed shipping result. The pipeline
// does not compute shipping itself; a cart without a selected option is a
// valid intermediate state and contributes zero.
type ShippingStep struct{}

// Name identifies the step in logs and error chains.
func (s ShippingStep) Name() string { return "shipping_cost" }

// Apply copies the shipping quote into the context and derives the shipping
// tax portion from total minus subtotal.
func (s ShippingStep) Apply(_ context.Context, pc *Context) error {
	q := pc.Snapshot.ShippingQuote
	if q == nil {
		return nil
	}
	pc.ShippingTotal = q.Total
	pc.Shipping = ShippingCost{
		Amount:     q.Total,
		OptionID:   q.OptionID,
		OptionName: q.OptionName,
		TaxAmount:  q.TaxAmount(),
		RateBps:    q.RateBps,
	}
	return nil
}
