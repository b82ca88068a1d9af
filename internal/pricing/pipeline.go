package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// ErrInvalidSnapshot is returned when a cart snapshot cannot be priced as given.
var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

// Step is one stage of the pricing pipeline. Steps receive the whole working
// context, mutate it in place and hand it to the next stage; composition is a
// plain fold over an ordered slice.
type Step interface {
	Name() string
	Apply(ctx context.Context, pc *Context) error
}

// Deps bundles the collaborators the default pipeline steps consume. All
// lookups are read-only; the pipeline never writes through them.
type Deps struct {
	Catalog   CandidateSource
	Contracts ContractSource
	Tiers     TierSource
	Discounts DiscountSource
	TaxRates  TaxRateSource
	Rounding  money.Rounding
	Resolver  Resolver
	Logger    *zerolog.Logger
}

// DefaultSteps builds the canonical stage order: base price resolution,
// contract override, quantity tiers, item discounts, cart discounts,
// shipping capture, tax, final rounding. Line-level stages run before the
// cart-level ones, which gives the barrier the totals depend on.
func DefaultSteps(d Deps) []Step {
	return []Step{
		BasePriceStep{Catalog: d.Catalog, Resolver: d.Resolver},
		ContractStep{Contracts: d.Contracts},
		TierStep{Tiers: d.Tiers},
		ItemDiscountStep{Discounts: d.Discounts, Logger: d.Logger},
		CartDiscountStep{Discounts: d.Discounts, Logger: d.Logger},
		ShippingStep{},
		TaxStep{Rates: d.TaxRates},
		RoundingStep{Rounding: d.Rounding},
	}
}

// Pipeline runs an ordered list of steps over a fresh Context per cart. A
// Pipeline value is safe for concurrent use; every Run owns its Context
// exclusively, so carts price in parallel without coordination.
type Pipeline struct {
	Steps []Step
	Now   func() time.Time
}

// New constructs a pipeline with the default stages.
func New(d Deps) *Pipeline {
	return &Pipeline{Steps: DefaultSteps(d)}
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run prices one cart snapshot. It either completes every stage and returns
// the final context, or aborts entirely on the first fatal error; partial
// results are never returned.
func (p *Pipeline) Run(ctx context.Context, snap CartSnapshot) (*Context, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, errors.New("pipeline not configured")
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	pc := newContext(snap, p.now())
	for _, step := range p.Steps {
		if err := step.Apply(ctx, pc); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name(), err)
		}
	}
	return pc, nil
}

func validateSnapshot(snap CartSnapshot) error {
	if snap.Currency == "" {
		return fmt.Errorf("currency is required: %w", ErrInvalidSnapshot)
	}
	if len(snap.Lines) == 0 {
		return fmt.Errorf("cart has no lines: %w", ErrInvalidSnapshot)
	}
	for _, ln := range snap.Lines {
		if ln.Qty < 1 {
			return fmt.Errorf("line %s: quantity must be at least 1: %w", ln.LineID, ErrInvalidSnapshot)
		}
	}
	return nil
}
