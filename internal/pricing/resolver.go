package pricing

import (
	"errors"
	"sort"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// Source identifies the pricing tier that produced a line's price.
type Source string

const (
	SourceManualOverride Source = "manual_override"
	SourceContract       Source = "contract"
	SourceCustomerGroup  Source = "customer_group"
	SourceChannel        Source = "channel"
	SourcePromotional    Source = "promotional"
	SourceTiered         Source = "tiered"
	SourceBase           Source = "base"
)

// ErrNoApplicablePrice indicates a line has no valid price from any source.
// This is fatal for the whole cart: a cart cannot be priced around an
// unpriced line.
var ErrNoApplicablePrice = errors.New("no applicable price for line")

// DefaultWeights is the static priority table for price sources. Higher wins.
func DefaultWeights() map[Source]int {
	return map[Source]int{
		SourceManualOverride: 1000,
		SourceContract:       900,
		SourceCustomerGroup:  800,
		SourceChannel:        700,
		SourcePromotional:    600,
		SourceTiered:         500,
		SourceBase:           100,
	}
}

// Resolver picks the winning price among the candidates offered for a line.
type Resolver struct {
	Weights          map[Source]int
	StopOnFirstMatch bool
}

// NewResolver returns a resolver with the default weight table and
// first-match semantics.
func NewResolver() Resolver {
	return Resolver{Weights: DefaultWeights(), StopOnFirstMatch: true}
}

func (r Resolver) weight(s Source) int {
	if w, ok := r.Weights[s]; ok {
		return w
	}
	return 0
}

// Resolve returns the winning unit price and its source tag. A candidate is
// valid when its price is present and non-negative. With StopOnFirstMatch the
// sources are evaluated in descending priority and the first valid one wins;
// otherwise every candidate is evaluated and the valid one with the highest
// priority is chosen. Ties fall back to the lexically smaller source tag so
// resolution stays deterministic for misconfigured weight tables.
func (r Resolver) Resolve(candidates []Candidate) (money.Money, Source, error) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		wi, wj := r.weight(ordered[i].Source), r.weight(ordered[j].Source)
		if wi != wj {
			return wi > wj
		}
		return ordered[i].Source < ordered[j].Source
	})

	if r.StopOnFirstMatch {
		for _, c := range ordered {
			if valid(c) {
				return *c.UnitPrice, c.Source, nil
			}
		}
		return 0, "", ErrNoApplicablePrice
	}

	var (
		winner Candidate
		found  bool
	)
	for _, c := range ordered {
		if !valid(c) {
			continue
		}
		if !found || r.weight(c.Source) > r.weight(winner.Source) {
			winner = c
			found = true
		}
	}
	if !found {
		return 0, "", ErrNoApplicablePrice
	}
	return *winner.UnitPrice, winner.Source, nil
}

func valid(c Candidate) bool {
	return c.UnitPrice != nil && *c.UnitPrice >= 0
}
