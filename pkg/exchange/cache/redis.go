package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Privex/go-exchange/pkg/metrics"
)

// RedisConfig holds the connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Redis is a Cache backed by a Redis server, for sharing cached tickers
// and snapshots between processes.
type Redis struct {
	client *redis.Client
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to the configured Redis server and verifies the
// connection with a ping before returning.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheOp("redis", "miss")
		return nil, ErrMiss
	case err != nil:
		metrics.RecordCacheOp("redis", "error")
		return nil, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	metrics.RecordCacheOp("redis", "hit")
	return data, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		metrics.RecordCacheOp("redis", "error")
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	metrics.RecordCacheOp("redis", "set")
	return nil
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
