package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/pricing"
)

func newTestStore(t *testing.T, now time.Time) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Store{Client: client, Now: func() time.Time { return now }}, mr
}

func sampleBreakdown(now time.Time) pricing.Breakdown {
	return pricing.Breakdown{
		Document: pricing.Document{
			CartID:     uuid.MustParse("dddddddd-0000-0000-0000-000000000051"),
			Currency:   "EUR",
			GrandTotal: 3800,
		},
		Digest:     "abc123",
		Trigger:    "checkout",
		ComputedAt: now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	b := sampleBreakdown(now)

	require.NoError(t, store.Put(context.Background(), b))

	got, ok, err := store.Get(context.Background(), b.Document.CartID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.Digest, got.Digest)
	require.Equal(t, b.Document.GrandTotal, got.Document.GrandTotal)
}

func TestStoreMissReturnsFalse(t *testing.T) {
	store, _ := newTestStore(t, time.Now())
	_, ok, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreRejectsExpiredWrite(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	b := sampleBreakdown(now)
	b.ExpiresAt = now.Add(-time.Minute)
	require.Error(t, store.Put(context.Background(), b))
}

func TestStoreTreatsStaleEntryAsAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	b := sampleBreakdown(now)
	require.NoError(t, store.Put(context.Background(), b))

	// Advance the store clock past the validity window; the Redis key may
	// still exist but the entry must no longer be served.
	store.Now = func() time.Time { return now.Add(25 * time.Hour) }
	_, ok, err := store.Get(context.Background(), b.Document.CartID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreInvalidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	b := sampleBreakdown(now)
	require.NoError(t, store.Put(context.Background(), b))
	require.NoError(t, store.Invalidate(context.Background(), b.Document.CartID))

	_, ok, err := store.Get(context.Background(), b.Document.CartID)
	require.NoError(t, err)
	require.False(t, ok)
}
