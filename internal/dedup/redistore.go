package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// markerValue is the payload stored under a marker key. Only the key's
// presence matters.
const markerValue = "1"

// RedisStore is a Redis-backed Store. SET NX EX gives the atomic
// set-if-absent-with-TTL the engine's dedup model requires, so it is safe
// under concurrent evaluation runs across processes.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed idempotency store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get reports whether key holds an unexpired marker.
func (s *RedisStore) Get(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, key).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return true, nil
}

// SetWithTTL unconditionally writes a marker.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, markerValue, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent claims the marker via SET NX.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, key, markerValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return claimed, nil
}

// Delete removes a marker.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings the Redis server. Used by the readiness endpoint.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
