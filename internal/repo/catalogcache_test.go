package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/cache"
	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
)

type countingSource struct {
	calls      int
	candidates []pricing.Candidate
}

func (c *countingSource) Candidates(context.Context, pricing.CartSnapshot, pricing.LineInput) ([]pricing.Candidate, error) {
	c.calls++
	return c.candidates, nil
}

func TestCachedCatalogServesFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	base := money.Money(1500)
	source := &countingSource{candidates: []pricing.Candidate{{Source: pricing.SourceBase, UnitPrice: &base}}}
	catalog := &CachedCatalog{Source: source, Cache: cache.New(client, time.Minute)}

	snap := pricing.CartSnapshot{Currency: "EUR", Channel: "web"}
	line := pricing.LineInput{PurchasableID: uuid.New(), Qty: 1}

	first, err := catalog.Candidates(context.Background(), snap, line)
	require.NoError(t, err)
	second, err := catalog.Candidates(context.Background(), snap, line)
	require.NoError(t, err)

	require.Equal(t, 1, source.calls)
	require.Len(t, first, 1)
	require.Equal(t, first[0].Source, second[0].Source)
	require.Equal(t, *first[0].UnitPrice, *second[0].UnitPrice)
}

func TestCachedCatalogDistinguishesContexts(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	base := money.Money(900)
	source := &countingSource{candidates: []pricing.Candidate{{Source: pricing.SourceBase, UnitPrice: &base}}}
	catalog := &CachedCatalog{Source: source, Cache: cache.New(client, time.Minute)}

	line := pricing.LineInput{PurchasableID: uuid.New(), Qty: 1}
	_, err = catalog.Candidates(context.Background(), pricing.CartSnapshot{Currency: "EUR", Channel: "web"}, line)
	require.NoError(t, err)
	_, err = catalog.Candidates(context.Background(), pricing.CartSnapshot{Currency: "EUR", Channel: "pos"}, line)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestCachedCatalogNilCacheFallsThrough(t *testing.T) {
	base := money.Money(100)
	source := &countingSource{candidates: []pricing.Candidate{{Source: pricing.SourceBase, UnitPrice: &base}}}
	catalog := &CachedCatalog{Source: source}

	line := pricing.LineInput{PurchasableID: uuid.New(), Qty: 1}
	for i := 0; i < 3; i++ {
		_, err := catalog.Candidates(context.Background(), pricing.CartSnapshot{Currency: "EUR"}, line)
		require.NoError(t, err)
	}
	require.Equal(t, 3, source.calls)
}
