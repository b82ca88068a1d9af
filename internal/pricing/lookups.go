package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pricing/internal/discount"
	"github.com/noah-isme/backend-pricing/internal/money"
)

// Candidate is one tagged unit price offered for a line by the catalog. A nil
// UnitPrice means the source has no opinion for this line.
type Candidate struct {
	Source    Source
	UnitPrice *money.Money
}

// CandidateSource supplies the price candidates the resolver chooses between
// for a line: manual override, customer group, channel, promotional and base
// prices. Lines referencing a variant the catalog does not price resolve to a
// collaborator-defined default (zero by convention); extending that default
// is the catalog implementation's concern, the pipeline never drops the line.
type CandidateSource interface {
	Candidates(ctx context.Context, snap CartSnapshot, line LineInput) ([]Candidate, error)
}

// ContractPrice is an active B2B contract price for (customer, purchasable).
type ContractPrice struct {
	UnitPrice  money.Money
	ContractID uuid.UUID
	Version    int32
}

// ContractSource looks up the contract price valid at the given instant.
// A nil result means no active contract.
type ContractSource interface {
	ContractPrice(ctx context.Context, customerID, purchasableID uuid.UUID, at time.Time) (*ContractPrice, error)
}

// TierPrice is the winning quantity-break entry for a line.
type TierPrice struct {
	UnitPrice money.Money
	TierName  string
	MatrixID  uuid.UUID
	Version   int32
	MinQty    int32
}

// TierSource resolves the quantity-break matrix for a purchasable. Among
// overlapping tiers the implementation returns the tier with the highest
// threshold not exceeding the quantity. A nil result means no tier matches.
type TierSource interface {
	TierPrice(ctx context.Context, purchasableID uuid.UUID, qty int32, customerGroup, currency string) (*TierPrice, error)
}

// DiscountSource returns the discounts for a scope that are active at the
// given instant. Implementations fetch once per run so repeated step reads
// observe the same definitions.
type DiscountSource interface {
	Discounts(ctx context.Context, scope discount.Scope, at time.Time) ([]discount.Discount, error)
}

// TaxRate is the applicable rate for a (zone, tax class, currency) triple.
type TaxRate struct {
	RateBps int64
	Name    string
}

// TaxRateSource resolves a tax rate from the shipping destination. A nil
// result means the line is tax exempt, which is a valid outcome rather than
// an error.
type TaxRateSource interface {
	TaxRate(ctx context.Context, addr Address, taxClass, currency string) (*TaxRate, error)
}
