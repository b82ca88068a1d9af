package pricing

import (
	"context"
	"fmt"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// ContractStep applies B2B contract prices. A contract may only ever lower a
// line's price; a misconfigured contract can therefore never overcharge.
type ContractStep struct {
	Contracts ContractSource
}

// Name identifies the step in logs and error chains.
func (s ContractStep) Name() string { return "b2b_contract" }

// Apply looks up the active contract price for (customer, purchasable) and
// replaces the line price when the contract total is strictly lower.
func (s ContractStep) Apply(ctx context.Context, pc *Context) error {
	if s.Contracts == nil || pc.Snapshot.CustomerID == nil {
		return nil
	}
	customerID := *pc.Snapshot.CustomerID
	for _, ln := range pc.Lines {
		cp, err := s.Contracts.ContractPrice(ctx, customerID, ln.PurchasableID, pc.Now)
		if err != nil {
			return fmt.Errorf("contract price for line %s: %w", ln.ID, err)
		}
		if cp == nil {
			continue
		}
		total := cp.UnitPrice * money.Money(ln.Qty)
		if total >= ln.CurrentPrice {
			continue
		}
		reduction := ln.CurrentPrice - total
		ln.UnitPrice = cp.UnitPrice
		ln.CurrentPrice = total
		ln.PriceSource = SourceContract
		ln.Record(AppliedRule{
			Type:       "b2b_contract",
			Identifier: cp.ContractID.String(),
			Version:    cp.Version,
			Amount:     reduction,
		})
	}
	return nil
}
