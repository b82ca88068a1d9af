package reprice

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/discount"
	"github.com/noah-isme/backend-pricing/internal/events"
	"github.com/noah-isme/backend-pricing/internal/lock"
	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/snapshot"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedCatalog struct {
	prices map[uuid.UUID]money.Money
}

func (c fixedCatalog) Candidates(_ context.Context, _ pricing.CartSnapshot, line pricing.LineInput) ([]pricing.Candidate, error) {
	price, ok := c.prices[line.PurchasableID]
	if !ok {
		return nil, nil
	}
	return []pricing.Candidate{{Source: pricing.SourceBase, UnitPrice: &price}}, nil
}

type noContracts struct{}

func (noContracts) ContractPrice(context.Context, uuid.UUID, uuid.UUID, time.Time) (*pricing.ContractPrice, error) {
	return nil, nil
}

type noTiers struct{}

func (noTiers) TierPrice(context.Context, uuid.UUID, int32, string, string) (*pricing.TierPrice, error) {
	return nil, nil
}

type noDiscounts struct{}

func (noDiscounts) Discounts(context.Context, discount.Scope, time.Time) ([]discount.Discount, error) {
	return nil, nil
}

type noTaxes struct{}

func (noTaxes) TaxRate(context.Context, pricing.Address, string, string) (*pricing.TaxRate, error) {
	return nil, nil
}

type capturingNotifier struct {
	events []events.Event
}

func (n *capturingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.events = append(n.events, ev)
	return nil
}

func newTestService(t *testing.T, prices map[uuid.UUID]money.Money) (*Service, *capturingNotifier) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pipeline := pricing.New(pricing.Deps{
		Catalog:   fixedCatalog{prices: prices},
		Contracts: noContracts{},
		Tiers:     noTiers{},
		Discounts: noDiscounts{},
		TaxRates:  noTaxes{},
		Resolver:  pricing.NewResolver(),
		Rounding:  money.Rounding{Mode: money.ModeRound, Increment: 1},
	})
	pipeline.Now = func() time.Time { return testNow }

	notifier := &capturingNotifier{}
	return &Service{
		Pipeline: pipeline,
		Locker:   lock.Locker{R: client},
		LockTTL:  5 * time.Second,
		Validity: 24 * time.Hour,
		Hot:      &snapshot.Store{Client: client, Now: func() time.Time { return testNow }},
		Events:   &events.Bus{Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return testNow }},
	}, notifier
}

func testSnapshot(purchasable uuid.UUID) pricing.CartSnapshot {
	return pricing.CartSnapshot{
		CartID:   uuid.MustParse("dddddddd-0000-0000-0000-000000000061"),
		Currency: "EUR",
		Lines: []pricing.LineInput{{
			LineID:        uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000061"),
			PurchasableID: purchasable,
			Qty:           2,
		}},
	}
}

func TestRepricePublishesAndEmits(t *testing.T) {
	purchasable := uuid.New()
	svc, notifier := newTestService(t, map[uuid.UUID]money.Money{purchasable: 1500})
	snap := testSnapshot(purchasable)

	res, err := svc.Reprice(context.Background(), snap, TriggerCheckout)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Empty(t, res.PreviousDigest)
	require.Equal(t, money.Money(3000), res.Breakdown.Document.GrandTotal)
	require.Len(t, notifier.events, 1)
	require.Equal(t, events.TopicCartRepriced, notifier.events[0].Topic)

	// Hot store now serves the published breakdown.
	got, ok, err := svc.Hot.Get(context.Background(), snap.CartID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res.Breakdown.Digest, got.Digest)
}

func TestRepriceUnchangedEmitsNothing(t *testing.T) {
	purchasable := uuid.New()
	svc, notifier := newTestService(t, map[uuid.UUID]money.Money{purchasable: 1500})
	snap := testSnapshot(purchasable)

	first, err := svc.Reprice(context.Background(), snap, TriggerCheckout)
	require.NoError(t, err)

	second, err := svc.Reprice(context.Background(), snap, TriggerScheduled)
	require.NoError(t, err)
	require.False(t, second.Changed)
	require.Equal(t, first.Breakdown.Digest, second.Breakdown.Digest)
	require.Equal(t, first.Breakdown.Digest, second.PreviousDigest)
	require.Len(t, notifier.events, 1)
}

func TestRepriceDetectsChange(t *testing.T) {
	purchasable := uuid.New()
	svc, _ := newTestService(t, map[uuid.UUID]money.Money{purchasable: 1500})
	snap := testSnapshot(purchasable)

	first, err := svc.Reprice(context.Background(), snap, TriggerCheckout)
	require.NoError(t, err)

	svc.Pipeline.Steps = pricing.DefaultSteps(pricing.Deps{
		Catalog:   fixedCatalog{prices: map[uuid.UUID]money.Money{purchasable: 1400}},
		Contracts: noContracts{},
		Tiers:     noTiers{},
		Discounts: noDiscounts{},
		TaxRates:  noTaxes{},
		Resolver:  pricing.NewResolver(),
		Rounding:  money.Rounding{Mode: money.ModeRound, Increment: 1},
	})
	second, err := svc.Reprice(context.Background(), snap, TriggerPriceChange)
	require.NoError(t, err)
	require.True(t, second.Changed)
	require.Equal(t, first.Breakdown.Digest, second.PreviousDigest)
	require.NotEqual(t, first.Breakdown.Digest, second.Breakdown.Digest)
}

func TestRepriceUnpriceableCart(t *testing.T) {
	svc, notifier := newTestService(t, nil)
	_, err := svc.Reprice(context.Background(), testSnapshot(uuid.New()), TriggerCheckout)
	require.Error(t, err)

	appErr := AsAppError(err)
	require.Equal(t, "UNPRICEABLE_CART", appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Empty(t, notifier.events)
}

func TestRepriceRequiresCartID(t *testing.T) {
	svc, _ := newTestService(t, nil)
	snap := testSnapshot(uuid.New())
	snap.CartID = uuid.Nil
	_, err := svc.Reprice(context.Background(), snap, TriggerCheckout)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, AsAppError(err).HTTPStatus)
}

func TestAsAppErrorMapping(t *testing.T) {
	require.Nil(t, AsAppError(nil))
	require.Equal(t, http.StatusInternalServerError, AsAppError(context.DeadlineExceeded).HTTPStatus)
	require.Equal(t, http.StatusBadRequest, AsAppError(pricing.ErrInvalidSnapshot).HTTPStatus)
	require.Equal(t, http.StatusUnprocessableEntity, AsAppError(pricing.ErrNoApplicablePrice).HTTPStatus)
}
