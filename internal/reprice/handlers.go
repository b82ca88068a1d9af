package reprice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/common"
	"github.com/noah-isme/backend-pricing/internal/obs"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/repo"
	"github.com/noah-isme/backend-pricing/internal/snapshot"
)

// HistorySource serves persisted breakdowns when the hot store cannot.
// *repo.BreakdownStore satisfies it.
type HistorySource interface {
	Latest(ctx context.Context, cartID uuid.UUID) (pricing.Breakdown, error)
}

// Handler wires the reprice service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Hot      *snapshot.Store
	History  HistorySource
	Tasks    *asynq.Client
	Logger   *zerolog.Logger
}

// Reprice prices the posted cart snapshot synchronously and returns the
// breakdown.
func (h *Handler) Reprice(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "reprice service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid cart id", nil)
		return
	}
	var payload RepriceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", validationDetails(err))
			return
		}
	}

	res, err := h.Svc.Reprice(r.Context(), payload.Snapshot(cartID), payload.Trigger)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"breakdown":      res.Breakdown,
			"changed":        res.Changed,
			"previousDigest": res.PreviousDigest,
		},
	})
}

// GetBreakdown returns the latest published breakdown for a cart. The hot
// store answers first; expired or evicted entries fall back to the durable
// history, and an expired history entry is reported as gone so the consumer
// reprices.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid cart id", nil)
		return
	}

	if h.Hot != nil {
		b, ok, err := h.Hot.Get(r.Context(), cartID)
		switch {
		case err != nil:
			// A broken hot store must not fail the read; history still holds
			// the breakdown. Count it apart from a plain miss.
			countSnapshotLookup("error")
			if h.Logger != nil {
				h.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("read hot breakdown")
			}
		case ok:
			countSnapshotLookup("hit")
			common.JSON(w, http.StatusOK, map[string]any{"data": b})
			return
		}
	}

	if h.History == nil {
		countSnapshotLookup("miss")
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no breakdown for cart", nil)
		return
	}
	b, err := h.History.Latest(r.Context(), cartID)
	if err != nil {
		if errors.Is(err, repo.ErrBreakdownNotFound) {
			countSnapshotLookup("miss")
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no breakdown for cart", nil)
			return
		}
		writeError(w, err)
		return
	}
	if b.Expired(time.Now()) {
		countSnapshotLookup("stale")
		common.JSONError(w, http.StatusGone, common.CodeNotFound, "breakdown expired, reprice required", nil)
		return
	}
	countSnapshotLookup("history")
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// BulkReprice enqueues a background fan-out over many carts and returns 202.
func (h *Handler) BulkReprice(w http.ResponseWriter, r *http.Request) {
	if h.Tasks == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeInternal, "task queue not configured", nil)
		return
	}
	// An empty body is a valid bulk request meaning "all carts".
	var payload BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if payload.Trigger == "" {
		payload.Trigger = TriggerPriceChange
	}
	task, err := NewBulkRepriceTask(payload)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.Tasks.EnqueueContext(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{
		"data": map[string]any{"taskId": info.ID, "queue": info.Queue},
	})
}

func writeError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}

func countSnapshotLookup(result string) {
	if obs.SnapshotLookups != nil {
		obs.SnapshotLookups.WithLabelValues(result).Inc()
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
