package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBodyLimitPassesSmallPayloadThrough(t *testing.T) {
	limiter := BodyLimit{Max: 64}
	var captured string
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	payload := `{"currency":"EUR"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/x/reprice", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured != payload {
		t.Fatalf("expected body to pass through intact, got %q", captured)
	}
}

func TestBodyLimitRejectsOversizedPayload(t *testing.T) {
	limiter := BodyLimit{Max: 5}
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/x/reprice", strings.NewReader("excessive"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INVALID_INPUT") {
		t.Fatalf("expected JSON error envelope, got %q", rr.Body.String())
	}
}

func TestBodyLimitTrustsNothingButTheBytes(t *testing.T) {
	limiter := BodyLimit{Max: 5}
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Declared length over the cap is rejected without reading.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/x/reprice", strings.NewReader("x"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for declared oversized body, got %d", rr.Code)
	}

	// An undeclared length still gets capped by reading.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/carts/x/reprice", strings.NewReader("excessive"))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for chunked oversized body, got %d", rr.Code)
	}
}
