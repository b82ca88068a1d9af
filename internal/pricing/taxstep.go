package pricing

import (
	"context"
	"sort"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// TaxStep computes per-line taxes from the shipping destination's tax zone.
// Lines without a resolvable tax class or zone pay zero tax; exempt
// jurisdictions and products must not break pricing.
type TaxStep struct {
	Rates TaxRateSource
}

// Name identifies the step in logs and error chains.
func (s TaxStep) Name() string { return "tax" }

// Apply resolves the rate for every line, accumulates per-rate totals and
// records one tax entry per line. The sum of line taxes equals the total by
// construction.
func (s TaxStep) Apply(ctx context.Context, pc *Context) error {
	type rateAcc struct {
		name   string
		amount money.Money
	}
	perRate := map[int64]*rateAcc{}

	for _, ln := range pc.Lines {
		entry := LineTax{LineID: ln.ID, TaxBase: ln.CurrentPrice, TaxClass: ln.TaxClass}
		rate := s.resolve(ctx, pc, ln)
		if rate != nil && rate.RateBps > 0 {
			entry.RateBps = rate.RateBps
			entry.TaxAmount = money.PercentBps(ln.CurrentPrice, rate.RateBps)
			acc, ok := perRate[rate.RateBps]
			if !ok {
				acc = &rateAcc{name: rate.Name}
				perRate[rate.RateBps] = acc
			}
			acc.amount += entry.TaxAmount
			pc.Tax.Total += entry.TaxAmount
		}
		pc.Tax.Lines = append(pc.Tax.Lines, entry)
	}

	rates := make([]int64, 0, len(perRate))
	for bps := range perRate {
		rates = append(rates, bps)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	for _, bps := range rates {
		pc.Tax.Rates = append(pc.Tax.Rates, RateTax{RateBps: bps, Name: perRate[bps].name, Amount: perRate[bps].amount})
	}
	pc.TaxTotal = pc.Tax.Total
	return nil
}

// resolve returns nil for exempt lines. Lookup failures degrade to zero tax
// rather than failing the reprice; a stale tax dependency must not block a
// cart from being priced.
func (s TaxStep) resolve(ctx context.Context, pc *Context, ln *Line) *TaxRate {
	if s.Rates == nil || pc.Snapshot.ShippingAddress == nil || ln.TaxClass == "" {
		return nil
	}
	rate, err := s.Rates.TaxRate(ctx, *pc.Snapshot.ShippingAddress, ln.TaxClass, pc.Snapshot.Currency)
	if err != nil {
		return nil
	}
	return rate
}
