package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the endpoint store dependency is not configured.
var ErrStoreUnavailable = errors.New("notify: store unavailable")

// WebhookEndpoint is one registered consumer of pricing events.
type WebhookEndpoint struct {
	ID     uuid.UUID
	URL    string
	Secret string
	Topics []string
	Active bool
}

// Store provides endpoint lookups for the dispatcher.
type Store interface {
	ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]WebhookEndpoint, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// ListActiveEndpointsForTopic returns active endpoints subscribed to the topic.
func (s *pgStore) ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]WebhookEndpoint, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, url, secret, topics, active
FROM webhook_endpoints
WHERE active AND $1 = ANY(topics)
ORDER BY id`, topic)
	if err != nil {
		return nil, fmt.Errorf("notify: query endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []WebhookEndpoint
	for rows.Next() {
		var ep WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.URL, &ep.Secret, &ep.Topics, &ep.Active); err != nil {
			return nil, fmt.Errorf("notify: scan endpoint: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}
