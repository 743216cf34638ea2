package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

const keyPrefix = "weather:"

// MemcachedCache implements Cache using memcached. Freshness is delegated
// to server-side expiry, so unlike the in-memory backend a stale record is
// gone rather than left in place; the read-side contract is the same.
type MemcachedCache struct {
	client *memcache.Client
	ttl    time.Duration
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, ttl, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client, ttl: ttl}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.ForecastResult, bool, error) {
	if ctx.Err() != nil {
		return models.ForecastResult{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return models.ForecastResult{}, false, nil
		}
		return models.ForecastResult{}, false, err
	}
	var result models.ForecastResult
	if err := json.Unmarshal(item.Value, &result); err != nil {
		return models.ForecastResult{}, false, err
	}
	return result, true, nil
}

// Set implements Cache.Set with the configured TTL as relative expiry.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.ForecastResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(c.ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix time
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 1800
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Clear flushes all items. Memcached cannot report how many were removed,
// so the count is -1.
func (c *MemcachedCache) Clear(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err := c.client.FlushAll(); err != nil {
		return 0, err
	}
	return -1, nil
}

// Size is not enumerable over the memcached protocol.
func (c *MemcachedCache) Size(ctx context.Context) (int, error) {
	return 0, nil
}

// Keys is not enumerable over the memcached protocol.
func (c *MemcachedCache) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
