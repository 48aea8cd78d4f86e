// Package cache provides the pluggable TTL cache used to memoize upstream
// exchange responses and computed rate snapshots.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: key not found")

// Cache is a byte-oriented key/value store with per-key expiry.
type Cache interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the backend.
	Close() error
}

// Config selects and configures a cache backend.
type Config struct {
	Backend string
	Redis   RedisConfig
}

// New builds the cache backend named by cfg.Backend. An empty backend
// defaults to the in-process memory cache.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// GetJSON fetches key and decodes its JSON value into T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var out T
	data, err := c.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes value as JSON and stores it under key for ttl.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
