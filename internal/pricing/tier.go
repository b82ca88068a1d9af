package pricing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// TierStep applies quantity-break pricing. Tier prices only lower a line and
// never displace a contract price that already won.
type TierStep struct {
	Tiers TierSource
}

// Name identifies the step in logs and error chains.
func (s TierStep) Name() string { return "quantity_tier" }

// Apply replaces a line's price with the matching tier price when it is
// strictly lower than the current price. The source keeps the highest
// threshold not exceeding the quantity as the winning tier.
func (s TierStep) Apply(ctx context.Context, pc *Context) error {
	if s.Tiers == nil {
		return nil
	}
	for _, ln := range pc.Lines {
		if ln.PriceSource == SourceContract {
			continue
		}
		tp, err := s.Tiers.TierPrice(ctx, ln.PurchasableID, ln.Qty, pc.Snapshot.CustomerGroup, pc.Snapshot.Currency)
		if err != nil {
			return fmt.Errorf("tier price for line %s: %w", ln.ID, err)
		}
		if tp == nil {
			continue
		}
		total := tp.UnitPrice * money.Money(ln.Qty)
		if total >= ln.CurrentPrice {
			continue
		}
		reduction := ln.CurrentPrice - total
		ln.UnitPrice = tp.UnitPrice
		ln.CurrentPrice = total
		ln.PriceSource = SourceTiered
		ln.Record(AppliedRule{
			Type:       "quantity_tier",
			Identifier: tp.MatrixID.String(),
			Version:    tp.Version,
			Amount:     reduction,
			Extra: map[string]string{
				"tier":   tp.TierName,
				"minQty": strconv.Itoa(int(tp.MinQty)),
			},
		})
	}
	return nil
}
