package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the requested key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Manager handles caching operations with a Redis backend.
//
// Values are opaque strings; callers serialize their own payloads. A zero TTL
// stores the value without expiry (used by the mirror's best-effort redirect
// layer).
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a cache value by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	value, err := m.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues(namespaceOf(key)).Inc()
			return "", ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues(namespaceOf(key)).Inc()
	return value, nil
}

// MGet retrieves multiple cache values in one round trip. The result has one
// element per requested key; missing keys yield an empty string. Hit and miss
// counters are updated per key.
func (m *Manager) MGet(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	raw, err := m.redis.MGet(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("mget").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	values := make([]string, len(keys))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok || s == "" {
			CacheMisses.WithLabelValues(namespaceOf(keys[i])).Inc()
			continue
		}
		CacheHits.WithLabelValues(namespaceOf(keys[i])).Inc()
		values[i] = s
	}

	return values, nil
}

// Set stores a value under key. A ttl of zero stores without expiry;
// a negative ttl is treated as already expired and not stored.
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		return nil
	}

	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWriteBytes.Add(float64(len(value)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// namespaceOf extracts the key prefix for metric labels.
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
