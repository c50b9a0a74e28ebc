// Package cache provides the Dragonfly/Redis client and the key layout used
// for section status caching.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-academy/internal/platform/config"
)

const keyPrefix = "learn"

// Cache wraps a Redis/Dragonfly client and the entry TTL.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

// Key joins parts under the service prefix: Key("status", "u1") is "learn:status:u1".
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// ParseURL validates a redis:// or rediss:// connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New connects to the cache and verifies it answers PING. Reads and writes
// time out quickly so a slow cache falls back to the store.
func New(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	if cfg.TTLSeconds <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %ds", cfg.TTLSeconds)
	}
	opts, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond
	opts.MaxRetries = 1

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client, TTL: time.Duration(cfg.TTLSeconds) * time.Second}, nil
}

// Generation returns the counter stored at key, or 0 when it is unset.
func (c *Cache) Generation(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation %s: %w", key, err)
	}
	return n, nil
}

// Bump advances the counter at key. The counter outlives every entry written
// under an older generation.
func (c *Cache) Bump(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*c.TTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bump generation %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
