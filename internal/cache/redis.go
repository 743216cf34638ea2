package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

// RedisCache implements Cache using redis with server-side expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis using a URL of the form
// redis://[user:pass@]host:port/db and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *RedisCache) Get(ctx context.Context, key string) (models.ForecastResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.ForecastResult{}, false, nil
		}
		return models.ForecastResult{}, false, err
	}
	var result models.ForecastResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.ForecastResult{}, false, err
	}
	return result, true, nil
}

// Set implements Cache.Set with the configured TTL as key expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value models.ForecastResult) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, c.ttl).Err()
}

// Clear deletes all keys under the weather prefix and returns the count removed.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Size counts keys under the weather prefix.
func (c *RedisCache) Size(ctx context.Context) (int, error) {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Keys returns the cached city keys (prefix stripped) in sorted order.
func (c *RedisCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, keyPrefix))
	}
	sort.Strings(out)
	return out, nil
}

// scanKeys iterates the keyspace with SCAN rather than KEYS to avoid
// blocking the server.
func (c *RedisCache) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping checks if redis is reachable. Used for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client. Call during shutdown.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
