package reprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/repo"
)

// Task types consumed by the worker.
const (
	TaskRepriceCart = "pricing:reprice_cart"
	TaskRepriceBulk = "pricing:reprice_bulk"
)

type repriceCartPayload struct {
	CartID  uuid.UUID `json:"cartId"`
	Trigger string    `json:"trigger"`
}

type repriceBulkPayload struct {
	CartIDs []uuid.UUID `json:"cartIds,omitempty"`
	Trigger string      `json:"trigger"`
}

// NewRepriceCartTask builds the per-cart background reprice task. Tasks are
// deduplicated per cart so a burst of price changes enqueues one run.
func NewRepriceCartTask(cartID uuid.UUID, trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(repriceCartPayload{CartID: cartID, Trigger: trigger})
	if err != nil {
		return nil, fmt.Errorf("reprice: encode cart task: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID("reprice:" + cartID.String()),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	}
	return asynq.NewTask(TaskRepriceCart, payload, opts...), nil
}

// NewBulkRepriceTask builds the fan-out task for a fleet-wide reprice.
func NewBulkRepriceTask(req BulkRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(repriceBulkPayload{CartIDs: req.CartIDs, Trigger: req.Trigger})
	if err != nil {
		return nil, fmt.Errorf("reprice: encode bulk task: %w", err)
	}
	return asynq.NewTask(TaskRepriceBulk, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// Enqueuer is the slice of the asynq client the fan-out needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskHandler processes reprice tasks on the worker.
type TaskHandler struct {
	Svc       *Service
	Carts     SnapshotSource
	Client    Enqueuer
	Logger    *zerolog.Logger
	BatchSize int
}

// Register attaches the handlers to an asynq mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskRepriceCart, h.HandleRepriceCart)
	mux.HandleFunc(TaskRepriceBulk, h.HandleRepriceBulk)
}

// HandleRepriceCart reprices one cart from its stored snapshot. A cart whose
// snapshot has disappeared is done, not retryable; an unpriceable cart is
// logged and likewise dropped since retrying cannot make it priceable.
func (h *TaskHandler) HandleRepriceCart(ctx context.Context, task *asynq.Task) error {
	if h.Svc == nil {
		return errors.New("reprice: task handler not configured")
	}
	var payload repriceCartPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("reprice: decode cart task: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Trigger == "" {
		payload.Trigger = TriggerScheduled
	}
	res, err := h.Svc.RepriceStored(ctx, payload.CartID, payload.Trigger)
	switch {
	case errors.Is(err, repo.ErrSnapshotNotFound):
		return nil
	case errors.Is(err, pricing.ErrNoApplicablePrice), errors.Is(err, pricing.ErrInvalidSnapshot):
		h.logWarn(err, payload.CartID, "cart not priceable, dropping task")
		return fmt.Errorf("reprice: %v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}
	if h.Logger != nil && res.Changed {
		h.Logger.Info().
			Str("cart_id", payload.CartID.String()).
			Str("digest", res.Breakdown.Digest).
			Str("trigger", payload.Trigger).
			Msg("cart repriced")
	}
	return nil
}

// HandleRepriceBulk fans a bulk request out into per-cart tasks. With no
// explicit cart list it walks every recorded snapshot in batches.
func (h *TaskHandler) HandleRepriceBulk(ctx context.Context, task *asynq.Task) error {
	if h.Client == nil || h.Carts == nil {
		return errors.New("reprice: bulk handler not configured")
	}
	var payload repriceBulkPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("reprice: decode bulk task: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Trigger == "" {
		payload.Trigger = TriggerPriceChange
	}

	if len(payload.CartIDs) > 0 {
		return h.enqueueAll(ctx, payload.CartIDs, payload.Trigger)
	}

	batch := h.BatchSize
	if batch <= 0 {
		batch = 500
	}
	var after uuid.UUID
	for {
		ids, err := h.Carts.ListCartIDs(ctx, batch, after)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := h.enqueueAll(ctx, ids, payload.Trigger); err != nil {
			return err
		}
		after = ids[len(ids)-1]
	}
}

func (h *TaskHandler) enqueueAll(ctx context.Context, ids []uuid.UUID, trigger string) error {
	for _, id := range ids {
		task, err := NewRepriceCartTask(id, trigger)
		if err != nil {
			return err
		}
		if _, err := h.Client.EnqueueContext(ctx, task); err != nil {
			// Duplicate task IDs mean a reprice is already queued for the
			// cart, which is exactly the dedup we want.
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			return err
		}
	}
	return nil
}

func (h *TaskHandler) logWarn(err error, cartID uuid.UUID, msg string) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg(msg)
}
