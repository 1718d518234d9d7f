package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore persists sessions in Redis. Expiry rides on Redis key TTLs, so
// no separate sweep is needed; every Put resets the TTL, making it an
// inactivity timeout.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("tapbook.internal.session"),
	}
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.SalonID, sess.CustomerID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, salonID, customerID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.client.Get(ctx, key(salonID, customerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, salonID, customerID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.client.Del(ctx, key(salonID, customerID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
