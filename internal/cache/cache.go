package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable is returned when no redis client is configured or the
// server cannot be reached. Callers treat it as a cache miss: the database
// stays the source of truth, a dead cache only costs extra lookups.
var ErrCacheUnavailable = errors.New("cache unavailable")

const revocationKeyPrefix = "revoked_refresh:"

// Connect dials redis from a URL (redis://...). An empty URL yields a nil
// client, which Cache accepts and treats as permanently unavailable.
func Connect(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Cache wraps an optional redis client. All methods are nil-safe so the rest
// of the application never branches on whether redis is configured.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// MarkRevoked records a revoked refresh-token hash for the remainder of the
// token's lifetime. Non-positive TTLs are skipped: the token is already past
// expiry and the database check rejects it anyway.
func (c *Cache) MarkRevoked(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if c == nil || c.rdb == nil {
		return ErrCacheUnavailable
	}
	if err := c.rdb.Set(ctx, revocationKeyPrefix+tokenHash, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// IsRevoked is the fast-path revocation check. A true result short-circuits
// the database lookup; false or an error means the caller must fall through
// to the authoritative store.
func (c *Cache) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, ErrCacheUnavailable
	}
	_, err := c.rdb.Get(ctx, revocationKeyPrefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return true, nil
}

// GetJSON loads a cached JSON value into dest. The bool reports a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, ErrCacheUnavailable
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return ErrCacheUnavailable
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return ErrCacheUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func UserViewKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func TodoListKey(userID int64) string {
	return fmt.Sprintf("todos:%d", userID)
}
