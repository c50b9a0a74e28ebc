package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-academy/internal/platform/cache"
)

// StatusCache holds computed section statuses per (course, user). Entries are
// written under the generation read before computing them; Invalidate
// advances the user's generation, so a listing computed before a change is
// never read after it.
type StatusCache interface {
	Generation(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, courseID, userID string, gen int64) ([]SectionStatus, bool)
	Set(ctx context.Context, courseID, userID string, gen int64, statuses []SectionStatus) error
	Invalidate(ctx context.Context, userID string) error
}

// NopStatusCache never caches.
type NopStatusCache struct{}

func (NopStatusCache) Generation(context.Context, string) (int64, error) { return 0, nil }
func (NopStatusCache) Get(context.Context, string, string, int64) ([]SectionStatus, bool) {
	return nil, false
}
func (NopStatusCache) Set(context.Context, string, string, int64, []SectionStatus) error { return nil }
func (NopStatusCache) Invalidate(context.Context, string) error                          { return nil }

// RedisStatusCache stores statuses as JSON under learn:status:{user}:{gen}:{course}
// with the user's generation at learn:status-gen:{user}.
type RedisStatusCache struct {
	cache *cache.Cache
}

// NewRedisStatusCache creates a status cache on a connected cache.
func NewRedisStatusCache(c *cache.Cache) *RedisStatusCache {
	return &RedisStatusCache{cache: c}
}

func statusKey(courseID, userID string, gen int64) string {
	return cache.Key("status", userID, strconv.FormatInt(gen, 10), courseID)
}

func generationKey(userID string) string {
	return cache.Key("status-gen", userID)
}

func (c *RedisStatusCache) Generation(ctx context.Context, userID string) (int64, error) {
	return c.cache.Generation(ctx, generationKey(userID))
}

func (c *RedisStatusCache) Get(ctx context.Context, courseID, userID string, gen int64) ([]SectionStatus, bool) {
	data, err := c.cache.Client.Get(ctx, statusKey(courseID, userID, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("status cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}

	var statuses []SectionStatus
	if err := json.Unmarshal(data, &statuses); err != nil {
		slog.Warn("status cache entry undecodable", "user_id", userID, "error", err)
		return nil, false
	}
	return statuses, true
}

func (c *RedisStatusCache) Set(ctx context.Context, courseID, userID string, gen int64, statuses []SectionStatus) error {
	data, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}
	if err := c.cache.Client.Set(ctx, statusKey(courseID, userID, gen), data, c.cache.TTL).Err(); err != nil {
		return fmt.Errorf("cache statuses: %w", err)
	}
	return nil
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, userID string) error {
	if _, err := c.cache.Bump(ctx, generationKey(userID)); err != nil {
		return fmt.Errorf("invalidate statuses: %w", err)
	}
	return nil
}
