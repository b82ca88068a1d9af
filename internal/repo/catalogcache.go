package repo

import (
	"context"

	"github.com/noah-isme/backend-pricing/internal/cache"
	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
)

// CachedCatalog decorates a CandidateSource with a short-lived Redis cache.
// Candidate rows change rarely compared to how often carts reprice, so the
// same (purchasable, currency, channel, group) lookup repeats constantly.
type CachedCatalog struct {
	Source pricing.CandidateSource
	Cache  *cache.Cache
}

type cachedCandidate struct {
	Source    pricing.Source `json:"source"`
	UnitPrice money.Money    `json:"unitPrice"`
}

// Candidates serves from cache when possible and falls through to the store.
// Cache errors degrade to a plain lookup; pricing never fails on cache state.
func (c *CachedCatalog) Candidates(ctx context.Context, snap pricing.CartSnapshot, line pricing.LineInput) ([]pricing.Candidate, error) {
	if c == nil || c.Source == nil {
		return nil, ErrStoreUnavailable
	}
	key := cache.KeyCandidates(line.PurchasableID.String(), snap.Currency, snap.Channel, snap.CustomerGroup)
	if line.VariantID != nil {
		key += ":" + line.VariantID.String()
	}

	var cached []cachedCandidate
	if hit, err := c.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return decodeCandidates(cached), nil
	}

	candidates, err := c.Source.Candidates(ctx, snap, line)
	if err != nil {
		return nil, err
	}
	_ = c.Cache.SetJSON(ctx, key, encodeCandidates(candidates))
	return candidates, nil
}

func encodeCandidates(candidates []pricing.Candidate) []cachedCandidate {
	out := make([]cachedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.UnitPrice == nil {
			continue
		}
		out = append(out, cachedCandidate{Source: cand.Source, UnitPrice: *cand.UnitPrice})
	}
	return out
}

func decodeCandidates(cached []cachedCandidate) []pricing.Candidate {
	out := make([]pricing.Candidate, 0, len(cached))
	for _, cand := range cached {
		price := cand.UnitPrice
		out = append(out, pricing.Candidate{Source: cand.Source, UnitPrice: &price})
	}
	return out
}
