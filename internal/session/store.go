// Package session keeps authenticated sessions server side in Redis and maps
// them to an opaque cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps any transport level failure of the session store.
var ErrStoreUnavailable = errors.New("session: store unavailable")

// Store persists raw session payloads with an expiry.
type Store interface {
	// Put stores payload under key and resets its TTL.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Get returns the payload; found is false when the key does not exist.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyPrefix returns the namespace used for session keys of an application.
func KeyPrefix(appName string) string {
	return appName + "_sess_"
}

// RedisStore is a Store backed by Redis strings.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore constructs a RedisStore. Every key is stored as prefix+key.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive, got %s", ttl)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get: %w", ErrStoreUnavailable, err)
	}
	return payload, true, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: del: %w", ErrStoreUnavailable, err)
	}
	return nil
}
