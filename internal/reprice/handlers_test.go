package reprice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/snapshot"
)

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/carts/{id}/reprice", h.Reprice)
	r.Get("/api/v1/carts/{id}/breakdown", h.GetBreakdown)
	return r
}

func repriceBody(t *testing.T, purchasable uuid.UUID) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(RepriceRequest{
		Currency: "EUR",
		Trigger:  TriggerCheckout,
		Lines: []LinePayload{{
			LineID:        uuid.New(),
			PurchasableID: purchasable,
			Qty:           2,
		}},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestRepriceEndpoint(t *testing.T) {
	purchasable := uuid.New()
	svc, _ := newTestService(t, map[uuid.UUID]money.Money{purchasable: 1500})
	h := &Handler{Svc: svc, Validate: validator.New(), Hot: svc.Hot}
	router := newTestRouter(h)

	cartID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/reprice", repriceBody(t, purchasable))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Changed   bool `json:"changed"`
			Breakdown struct {
				Digest   string `json:"digest"`
				Document struct {
					GrandTotal int64 `json:"grandTotal"`
				} `json:"document"`
			} `json:"breakdown"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Changed)
	require.NotEmpty(t, resp.Data.Breakdown.Digest)
	require.Equal(t, int64(3000), resp.Data.Breakdown.Document.GrandTotal)

	// The published breakdown is now readable.
	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+cartID.String()+"/breakdown", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestRepriceEndpointRejectsInvalidPayload(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := &Handler{Svc: svc, Validate: validator.New(), Hot: svc.Hot}
	router := newTestRouter(h)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing lines", `{"currency":"EUR"}`},
		{"bad currency", fmt.Sprintf(`{"currency":"EURO","lines":[{"lineId":%q,"purchasableId":%q,"qty":1}]}`, uuid.New(), uuid.New())},
		{"zero qty", fmt.Sprintf(`{"currency":"EUR","lines":[{"lineId":%q,"purchasableId":%q,"qty":0}]}`, uuid.New(), uuid.New())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+uuid.NewString()+"/reprice", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRepriceEndpointUnpriceable(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := &Handler{Svc: svc, Validate: validator.New(), Hot: svc.Hot}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+uuid.NewString()+"/reprice", repriceBody(t, uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "UNPRICEABLE_CART")
}

func TestGetBreakdownNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := &Handler{Svc: svc, Hot: svc.Hot}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+uuid.NewString()+"/breakdown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type fixedHistory struct {
	b pricing.Breakdown
}

func (f fixedHistory) Latest(ctx context.Context, cartID uuid.UUID) (pricing.Breakdown, error) {
	return f.b, nil
}

func TestGetBreakdownHotStoreErrorFallsBackToHistory(t *testing.T) {
	purchasable := uuid.New()
	svc, _ := newTestService(t, map[uuid.UUID]money.Money{purchasable: 1500})
	snap := testSnapshot(purchasable)
	res, err := svc.Reprice(context.Background(), snap, TriggerCheckout)
	require.NoError(t, err)
	b := res.Breakdown
	b.ExpiresAt = time.Now().Add(time.Hour)

	// Point the hot store at a Redis that is gone so every read errors.
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()
	broken := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = broken.Close() })

	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	h := &Handler{
		Hot:     snapshot.NewStore(broken),
		History: fixedHistory{b: b},
		Logger:  &logger,
	}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+snap.CartID.String()+"/breakdown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), b.Digest)
	require.Contains(t, logs.String(), "read hot breakdown")
	require.Contains(t, logs.String(), snap.CartID.String())
}

func TestGetBreakdownInvalidID(t *testing.T) {
	h := &Handler{}
	router := newTestRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/not-a-uuid/breakdown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
