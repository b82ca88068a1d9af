// Package notify delivers pricing events to registered webhook endpoints.
// Delivery rides the in-process event bus; a failing endpoint never fails
// the reprice that produced the event.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pricing/internal/events"
	"github.com/noah-isme/backend-pricing/internal/resilience"
)

// ReplayProtector claims a delivery key for a TTL so the api and worker
// processes cannot both deliver the same event to the same endpoint.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisReplayProtector implements ReplayProtector with SETNX. The claim is
// never released explicitly; it simply expires with the TTL.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire attempts to claim the delivery key for the provided TTL.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Dispatcher fans one event out to every active endpoint subscribed to its
// topic. It implements events.Notifier.
type Dispatcher struct {
	Store     Store
	HTTP      *resilience.HTTPClient
	Enabled   bool
	Replay    ReplayProtector
	ReplayTTL time.Duration
}

// Notify delivers the event to all subscribed endpoints. Per-endpoint
// failures are joined so one broken consumer does not starve the rest.
func (d *Dispatcher) Notify(ctx context.Context, event events.Event) error {
	if d == nil || !d.Enabled || d.Store == nil {
		return nil
	}
	if strings.TrimSpace(event.Topic) == "" {
		return nil
	}
	endpoints, err := d.Store.ListActiveEndpointsForTopic(ctx, event.Topic)
	if err != nil {
		return err
	}
	var joined error
	for _, ep := range endpoints {
		if status, err := d.deliver(ctx, ep, event); err != nil {
			joined = errors.Join(joined, fmt.Errorf("deliver to %s: status=%d: %w", ep.ID, status, err))
		}
	}
	return joined
}

func (d *Dispatcher) deliver(ctx context.Context, ep WebhookEndpoint, ev events.Event) (int, error) {
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	if d.Replay != nil && d.ReplayTTL > 0 {
		ok, err := d.Replay.Acquire(ctx, replayKey(ep.ID, ev.ID), d.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return http.StatusOK, nil
		}
	}

	payload := struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID.String(),
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pricing-webhooks/1.0")
	req.Header.Set("X-Event-ID", payload.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, payload.EventID, body))

	client := d.HTTP
	if client == nil {
		client = &resilience.HTTPClient{Client: HttpClient(5000, false), Target: "webhook-delivery"}
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.New(resp.Status)
	}
	return resp.StatusCode, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HttpClient returns an HTTP client configured for webhook delivery.
func HttpClient(timeoutMs int, insecure bool) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = insecureTLSConfig
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(transport),
	}
}

var insecureTLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec

func replayKey(endpointID, eventID uuid.UUID) string {
	return fmt.Sprintf("wh:%s:%s", endpointID, eventID)
}
