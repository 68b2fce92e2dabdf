package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feedmill/quote-service/internal/domain"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "quote:"

// Redis keeps quote sessions as JSON values with a TTL, so sessions are
// shared across service instances and expire server-side.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedis creates a Redis-backed store. An empty prefix uses DefaultKeyPrefix.
func NewRedis(client redis.UniversalClient, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) key(id string) string { return r.prefix + id }

// Save writes the session and refreshes its TTL.
func (r *Redis) Save(ctx context.Context, quote *domain.Quote) error {
	data, err := encodeQuote(quote)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key(quote.ID()), data, r.ttl).Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

// Get loads a session.
func (r *Redis) Get(ctx context.Context, id string) (*domain.Quote, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NewNotFoundError("quote", id)
		}
		return nil, unavailable(err)
	}

	return decodeQuote(data)
}

// Delete removes a session.
func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return domain.NewNotFoundError("quote", id)
	}

	return nil
}

// Name implements ports.HealthChecker.
func (r *Redis) Name() string { return "session-store" }

// Check implements ports.HealthChecker.
func (r *Redis) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return domain.NewUnavailableError("redis", err.Error())
}
