package pricing

import (
	"context"
	"fmt"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// BasePriceStep resolves the starting price of every line. The catalog offers
// tagged candidates per line and the resolver decides which source wins.
type BasePriceStep struct {
	Catalog  CandidateSource
	Resolver Resolver
}

// Name identifies the step in logs and error chains.
func (s BasePriceStep) Name() string { return "base_price" }

// Apply resolves each line's unit price, materialises the tax-excluded line
// total and tags the winning price source. A line without any valid price
// aborts the run.
func (s BasePriceStep) Apply(ctx context.Context, pc *Context) error {
	if s.Catalog == nil {
		return fmt.Errorf("base price step: catalog not configured")
	}
	for _, ln := range pc.Lines {
		candidates, err := s.Catalog.Candidates(ctx, pc.Snapshot, LineInput{
			LineID:        ln.ID,
			PurchasableID: ln.PurchasableID,
			TaxClass:      ln.TaxClass,
			Qty:           ln.Qty,
		})
		if err != nil {
			return fmt.Errorf("candidates for line %s: %w", ln.ID, err)
		}
		unit, source, err := s.Resolver.Resolve(candidates)
		if err != nil {
			return fmt.Errorf("line %s: %w", ln.ID, err)
		}
		ln.UnitPrice = unit
		ln.BasePrice = unit * money.Money(ln.Qty)
		ln.CurrentPrice = ln.BasePrice
		ln.PriceSource = source
		ln.Record(AppliedRule{
			Type:       "price_source",
			Identifier: string(source),
			Amount:     ln.BasePrice,
		})
	}
	return nil
}
