package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/events"
	"github.com/noah-isme/backend-pricing/internal/resilience"
)

type memStore struct {
	endpoints []WebhookEndpoint
}

func (m memStore) ListActiveEndpointsForTopic(_ context.Context, topic string) ([]WebhookEndpoint, error) {
	var out []WebhookEndpoint
	for _, ep := range m.endpoints {
		for _, t := range ep.Topics {
			if t == topic {
				out = append(out, ep)
			}
		}
	}
	return out, nil
}

func testEvent() events.Event {
	return events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicCartRepriced,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"digest":"abc","grandTotal":3800}`),
		OccurredAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyDeliversSignedPayload(t *testing.T) {
	var gotBody []byte
	var gotSig, gotTS, gotEventID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		gotEventID = r.Header.Get("X-Event-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := &Dispatcher{
		Store: memStore{endpoints: []WebhookEndpoint{{
			ID: uuid.New(), URL: srv.URL, Secret: "s3cret",
			Topics: []string{events.TopicCartRepriced}, Active: true,
		}}},
		HTTP:    &resilience.HTTPClient{Client: srv.Client(), Target: "webhook-delivery"},
		Enabled: true,
	}

	ev := testEvent()
	require.NoError(t, d.Notify(context.Background(), ev))
	require.Equal(t, ev.ID.String(), gotEventID)

	ts, err := strconv.ParseInt(gotTS, 10, 64)
	require.NoError(t, err)
	require.Equal(t, ComputeSignature("s3cret", ts, ev.ID.String(), gotBody), gotSig)

	var payload struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, events.TopicCartRepriced, payload.Topic)
	require.JSONEq(t, string(ev.Payload), string(payload.Data))
}

func TestNotifySkipsUnsubscribedTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("endpoint must not be called")
	}))
	defer srv.Close()

	d := &Dispatcher{
		Store: memStore{endpoints: []WebhookEndpoint{{
			ID: uuid.New(), URL: srv.URL, Secret: "x",
			Topics: []string{"orders.created"}, Active: true,
		}}},
		Enabled: true,
	}
	require.NoError(t, d.Notify(context.Background(), testEvent()))
}

func TestNotifyDisabledDoesNothing(t *testing.T) {
	d := &Dispatcher{Store: memStore{}, Enabled: false}
	require.NoError(t, d.Notify(context.Background(), testEvent()))
}

func TestNotifyReportsEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := &Dispatcher{
		Store: memStore{endpoints: []WebhookEndpoint{{
			ID: uuid.New(), URL: srv.URL, Secret: "x",
			Topics: []string{events.TopicCartRepriced}, Active: true,
		}}},
		HTTP:    &resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond},
		Enabled: true,
	}
	require.Error(t, d.Notify(context.Background(), testEvent()))
}

func TestNotifyReplaySuppressed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Dispatcher{
		Store: memStore{endpoints: []WebhookEndpoint{{
			ID: uuid.New(), URL: srv.URL, Secret: "x",
			Topics: []string{events.TopicCartRepriced}, Active: true,
		}}},
		HTTP:      &resilience.HTTPClient{Client: srv.Client()},
		Enabled:   true,
		Replay:    RedisReplayProtector{Client: client},
		ReplayTTL: time.Minute,
	}

	ev := testEvent()
	require.NoError(t, d.Notify(context.Background(), ev))
	require.NoError(t, d.Notify(context.Background(), ev))
	require.Equal(t, 1, calls)
}

func TestValidateURL(t *testing.T) {
	require.NoError(t, validateURL("https://example.com/hook"))
	require.NoError(t, validateURL("http://localhost:8080/hook"))
	require.Error(t, validateURL("http://example.com/hook"))
	require.Error(t, validateURL("ftp://example.com"))
	require.Error(t, validateURL("https://"))
}
