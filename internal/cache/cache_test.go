package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

func forecastFixture(city string) models.ForecastResult {
	return models.ForecastResult{
		City:       city,
		CityKey:    city,
		UpdateTime: "2026-08-30T00:00:00Z",
		Forecasts: []models.ForecastPeriod{
			{StartTime: "2026-08-30 06:00:00", EndTime: "2026-08-30 18:00:00", Weather: "晴時多雲", Rain: "10"},
		},
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them while the record is fresh.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	val := forecastFixture("taipei")
	if err := c.Set(ctx, "taipei", val); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "taipei")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.City != val.City || len(got.Forecasts) != 1 {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when the
// requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies lazy expiry: after the TTL the
// record behaves as absent but stays in the store until the next Set or Clear.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	now := time.Now()
	c.now = func() time.Time { return now }
	if err := c.Set(ctx, "taipei", forecastFixture("taipei")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c.now = func() time.Time { return now.Add(30*time.Minute + time.Second) }
	_, ok, err := c.Get(ctx, "taipei")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired record")
	}

	// The stale record is left in place, not evicted.
	size, _ := c.Size(ctx)
	if size != 1 {
		t.Errorf("Size() after expiry = %d, want 1 (stale record kept)", size)
	}
}

// TestInMemoryCache_Set_RefreshesCapture verifies that overwriting a stale
// record makes it fresh again.
func TestInMemoryCache_Set_RefreshesCapture(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	now := time.Now()
	c.now = func() time.Time { return now }
	_ = c.Set(ctx, "tainan", forecastFixture("tainan"))

	later := now.Add(31 * time.Minute)
	c.now = func() time.Time { return later }
	if _, ok, _ := c.Get(ctx, "tainan"); ok {
		t.Fatal("Get() ok = true, want false after TTL")
	}

	_ = c.Set(ctx, "tainan", forecastFixture("tainan"))
	if _, ok, _ := c.Get(ctx, "tainan"); !ok {
		t.Error("Get() ok = false, want true after overwrite")
	}
}

// TestInMemoryCache_Clear verifies Clear removes everything and reports the
// count, and that subsequent lookups miss.
func TestInMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	_ = c.Set(ctx, "taipei", forecastFixture("taipei"))
	_ = c.Set(ctx, "tainan", forecastFixture("tainan"))

	removed, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Clear() removed = %d, want 2", removed)
	}

	if _, ok, _ := c.Get(ctx, "taipei"); ok {
		t.Error("Get() after Clear() ok = true, want false")
	}
	if size, _ := c.Size(ctx); size != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", size)
	}
}

// TestInMemoryCache_Keys verifies Keys returns the stored keys sorted.
func TestInMemoryCache_Keys(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	_ = c.Set(ctx, "tainan", forecastFixture("tainan"))
	_ = c.Set(ctx, "kaohsiung", forecastFixture("kaohsiung"))

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "kaohsiung" || keys[1] != "tainan" {
		t.Errorf("Keys() = %v, want [kaohsiung tainan]", keys)
	}
}

// TestInMemoryCache_ConcurrentAccess exercises Get/Set/Clear from many
// goroutines; run with -race.
func TestInMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(30 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, "taipei", forecastFixture("taipei"))
				_, _, _ = c.Get(ctx, "taipei")
				if j%25 == 0 {
					_, _ = c.Clear(ctx)
				}
			}
		}()
	}
	wg.Wait()
}
