// Package reprice orchestrates pricing runs: it serializes triggers per cart,
// executes the pipeline, publishes the resulting breakdown and emits events
// when a cart's price actually changed.
package reprice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/common"
	"github.com/noah-isme/backend-pricing/internal/events"
	"github.com/noah-isme/backend-pricing/internal/lock"
	"github.com/noah-isme/backend-pricing/internal/obs"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/repo"
	"github.com/noah-isme/backend-pricing/internal/snapshot"
)

// Reprice triggers. Free-form triggers are accepted; these are the ones the
// service itself produces.
const (
	TriggerCheckout    = "checkout"
	TriggerItemChange  = "item_change"
	TriggerCouponApply = "coupon_apply"
	TriggerScheduled   = "scheduled"
	TriggerPriceChange = "price_change"
	TriggerManual      = "manual"
)

// Result is the outcome of one reprice run. Changed reports whether the new
// digest differs from the previously published one, which is what consumers
// key invalidation on.
type Result struct {
	Breakdown      pricing.Breakdown
	Changed        bool
	PreviousDigest string
}

// SnapshotSource records and replays the last cart snapshot seen per cart.
// *repo.CartSnapshotStore satisfies it in production.
type SnapshotSource interface {
	Upsert(ctx context.Context, snap pricing.CartSnapshot) error
	Get(ctx context.Context, cartID uuid.UUID) (pricing.CartSnapshot, error)
	ListCartIDs(ctx context.Context, limit int, after uuid.UUID) ([]uuid.UUID, error)
}

// HistorySink appends breakdowns to durable storage. *repo.BreakdownStore
// satisfies it in production.
type HistorySink interface {
	Insert(ctx context.Context, b pricing.Breakdown) (uuid.UUID, error)
}

// Service coordinates a full reprice: per-cart advisory lock, pipeline run,
// breakdown assembly, hot store publication, durable history and event
// emission.
type Service struct {
	Pipeline *pricing.Pipeline
	Locker   lock.Locker
	LockTTL  time.Duration
	Validity time.Duration
	Hot      *snapshot.Store
	History  HistorySink
	Carts    SnapshotSource
	Events   *events.Bus
	Logger   *zerolog.Logger

	// StoreHistory toggles the durable Postgres copy of every breakdown.
	StoreHistory bool
}

// Reprice runs the pipeline for the snapshot under the cart's advisory lock.
// Concurrent triggers for the same cart queue behind each other so exactly
// one breakdown is published per run.
func (s *Service) Reprice(ctx context.Context, snap pricing.CartSnapshot, trigger string) (Result, error) {
	if s == nil || s.Pipeline == nil {
		return Result{}, errors.New("reprice: service not configured")
	}
	if trigger == "" {
		trigger = TriggerManual
	}
	if snap.CartID == uuid.Nil {
		return Result{}, fmt.Errorf("cart id is required: %w", pricing.ErrInvalidSnapshot)
	}

	var res Result
	started := time.Now()
	err := s.Locker.WithLock(ctx, lock.CartKey(snap.CartID.String()), s.LockTTL, func(ctx context.Context) error {
		var runErr error
		res, runErr = s.run(ctx, snap, trigger)
		return runErr
	})
	s.observe(trigger, started, res, err)
	return res, err
}

// RepriceStored replays the last recorded snapshot for the cart. Scheduled
// and bulk runs use this path since no upstream caller supplies cart state.
func (s *Service) RepriceStored(ctx context.Context, cartID uuid.UUID, trigger string) (Result, error) {
	if s == nil || s.Carts == nil {
		return Result{}, errors.New("reprice: cart snapshot store not configured")
	}
	snap, err := s.Carts.Get(ctx, cartID)
	if err != nil {
		return Result{}, err
	}
	return s.Reprice(ctx, snap, trigger)
}

func (s *Service) run(ctx context.Context, snap pricing.CartSnapshot, trigger string) (Result, error) {
	prev, hadPrev, err := s.Hot.Get(ctx, snap.CartID)
	if err != nil {
		// A broken hot store read never blocks repricing; the fresh run
		// overwrites whatever was there.
		s.logWarn(err, snap.CartID, "read previous breakdown")
		hadPrev = false
	}

	pc, err := s.Pipeline.Run(ctx, snap)
	if err != nil {
		return Result{}, err
	}
	breakdown, err := pricing.Assemble(pc, trigger, s.Validity)
	if err != nil {
		return Result{}, err
	}

	res := Result{Breakdown: breakdown, Changed: true}
	if hadPrev {
		res.PreviousDigest = prev.Digest
		res.Changed = prev.Digest != breakdown.Digest
	}

	if err := s.Hot.Put(ctx, breakdown); err != nil {
		return Result{}, err
	}
	if s.StoreHistory && s.History != nil {
		if _, err := s.History.Insert(ctx, breakdown); err != nil {
			s.logWarn(err, snap.CartID, "persist breakdown history")
		}
	}
	if s.Carts != nil {
		if err := s.Carts.Upsert(ctx, snap); err != nil {
			s.logWarn(err, snap.CartID, "record cart snapshot")
		}
	}
	if res.Changed && s.Events != nil {
		payload := map[string]any{
			"digest":     breakdown.Digest,
			"grandTotal": breakdown.Document.GrandTotal,
			"currency":   breakdown.Document.Currency,
			"trigger":    trigger,
			"expiresAt":  breakdown.ExpiresAt,
		}
		if res.PreviousDigest != "" {
			payload["previousDigest"] = res.PreviousDigest
		}
		if _, err := s.Events.Emit(ctx, events.TopicCartRepriced, snap.CartID, payload); err != nil {
			s.logWarn(err, snap.CartID, "emit repriced event")
		}
	}
	return res, nil
}

func (s *Service) observe(trigger string, started time.Time, res Result, err error) {
	if obs.RepriceTotal == nil {
		return
	}
	result := "unchanged"
	switch {
	case err != nil && errors.Is(err, pricing.ErrNoApplicablePrice):
		result = "unpriceable"
	case err != nil:
		result = "error"
	case res.Changed:
		result = "repriced"
	}
	obs.RepriceTotal.WithLabelValues(trigger, result).Inc()
	obs.RepriceDuration.WithLabelValues(trigger).Observe(float64(time.Since(started).Milliseconds()))
}

func (s *Service) logWarn(err error, cartID uuid.UUID, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg(msg)
}

// AsAppError maps reprice failures to transport error codes. Carts that
// cannot be priced are a semantic failure of the request, not a server fault.
func AsAppError(err error) *common.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, pricing.ErrNoApplicablePrice), errors.Is(err, pricing.ErrDistributionViolation):
		return common.NewAppError(common.CodeUnpriceableCart, "cart cannot be priced", http.StatusUnprocessableEntity, err)
	case errors.Is(err, pricing.ErrInvalidSnapshot):
		return common.NewAppError(common.CodeInvalidInput, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, repo.ErrSnapshotNotFound), errors.Is(err, repo.ErrBreakdownNotFound):
		return common.NewAppError(common.CodeNotFound, "cart has no recorded state", http.StatusNotFound, err)
	default:
		return common.NewAppError(common.CodeInternal, "reprice failed", http.StatusInternalServerError, err)
	}
}
