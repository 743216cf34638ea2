package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

// Cache defines the contract for forecast caching backends. Get returns the
// stored payload only while it is fresh; Set unconditionally overwrites.
// Clear, Size and Keys exist for the diagnostics endpoints; backends that
// cannot enumerate their keys report 0/nil without error.
type Cache interface {
	Get(ctx context.Context, key string) (models.ForecastResult, bool, error)
	Set(ctx context.Context, key string, value models.ForecastResult) error
	Clear(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
	Keys(ctx context.Context) ([]string, error)
}

// InMemoryCache implements Cache with a mutex-guarded map and lazy TTL
// checks at read time. There is no expiry sweep: a stale record stays in
// place until the next Set or Clear, Get just stops returning it. Safe for
// concurrent use by in-flight requests.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheRecord
	ttl  time.Duration
	now  func() time.Time
}

// cacheRecord pairs a cached payload with its capture timestamp.
type cacheRecord struct {
	value      models.ForecastResult
	capturedAt time.Time
}

// NewInMemoryCache creates an in-memory cache whose records are fresh for
// ttl after capture. Growth is unbounded; the key space is the fixed city set.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheRecord),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the record for key if present and younger than the TTL.
// Stale records behave as absent but are not evicted.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ForecastResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data[key]
	if !ok {
		return models.ForecastResult{}, false, nil
	}
	if c.now().Sub(rec.capturedAt) >= c.ttl {
		return models.ForecastResult{}, false, nil
	}
	return rec.value, true, nil
}

// Set overwrites any record for key with a fresh capture timestamp.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ForecastResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheRecord{value: value, capturedAt: c.now()}
	return nil
}

// Clear removes all records, stale ones included, and returns the count removed.
func (c *InMemoryCache) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.data)
	c.data = make(map[string]cacheRecord)
	return n, nil
}

// Size returns the number of stored records, counting stale ones.
func (c *InMemoryCache) Size(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data), nil
}

// Keys returns the stored keys in sorted order.
func (c *InMemoryCache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
