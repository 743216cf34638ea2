package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ichiro17/CwaWeather-backend/internal/cache"
	"github.com/ichiro17/CwaWeather-backend/internal/city"
	"github.com/ichiro17/CwaWeather-backend/internal/client"
)

type mockWeatherClient struct {
	resp  client.CWAResponse
	err   error
	calls int
}

func (m *mockWeatherClient) GetForecast(ctx context.Context, locationName string) (client.CWAResponse, error) {
	m.calls++
	if m.err != nil {
		return client.CWAResponse{}, m.err
	}
	return m.resp, nil
}

func cwaFixture(locationName string) client.CWAResponse {
	var resp client.CWAResponse
	wx := client.WeatherElement{ElementName: "Wx"}
	et := client.ElementTime{StartTime: "2026-08-30 06:00:00", EndTime: "2026-08-30 18:00:00"}
	et.Parameter.ParameterName = "晴時多雲"
	wx.Time = append(wx.Time, et)
	resp.Records.Location = []client.Location{
		{LocationName: locationName, WeatherElement: []client.WeatherElement{wx}},
	}
	return resp
}

// TestGetForecast_MissThenHit verifies the cache-aside flow: the first
// request calls upstream and reports cached=false, the second within the
// TTL returns identical data with cached=true and no upstream call.
func TestGetForecast_MissThenHit(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockWeatherClient{resp: cwaFixture("臺北市")}
	svc := NewWeatherService(mockClient, cache.NewInMemoryCache(30*time.Minute))

	first, cached, err := svc.GetForecast(ctx, "taipei")
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if cached {
		t.Error("first GetForecast() cached = true, want false")
	}
	if mockClient.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", mockClient.calls)
	}

	second, cached, err := svc.GetForecast(ctx, "taipei")
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if !cached {
		t.Error("second GetForecast() cached = false, want true")
	}
	if mockClient.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (no call on cache hit)", mockClient.calls)
	}
	if second.City != first.City || second.UpdateTime != first.UpdateTime || len(second.Forecasts) != len(first.Forecasts) {
		t.Errorf("cached result %+v differs from original %+v", second, first)
	}
}

// TestGetForecast_CaseInsensitiveKey verifies that differently-cased keys
// share one cache entry.
func TestGetForecast_CaseInsensitiveKey(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockWeatherClient{resp: cwaFixture("臺北市")}
	svc := NewWeatherService(mockClient, cache.NewInMemoryCache(30*time.Minute))

	if _, _, err := svc.GetForecast(ctx, "TAIPEI"); err != nil {
		t.Fatalf("GetForecast(TAIPEI) error = %v", err)
	}
	_, cached, err := svc.GetForecast(ctx, "taipei")
	if err != nil {
		t.Fatalf("GetForecast(taipei) error = %v", err)
	}
	if !cached || mockClient.calls != 1 {
		t.Errorf("cached = %v, calls = %d, want shared entry (true, 1)", cached, mockClient.calls)
	}
}

// TestGetForecast_TTLElapsed verifies a stale record triggers a fresh
// upstream call that overwrites the cache entry.
func TestGetForecast_TTLElapsed(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockWeatherClient{resp: cwaFixture("臺北市")}
	svc := NewWeatherService(mockClient, cache.NewInMemoryCache(10*time.Millisecond))

	if _, _, err := svc.GetForecast(ctx, "taipei"); err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, cached, err := svc.GetForecast(ctx, "taipei")
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if cached {
		t.Error("GetForecast() after TTL cached = true, want false")
	}
	if mockClient.calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (refetch after TTL)", mockClient.calls)
	}
}

// TestGetForecast_UnknownCity verifies unsupported keys fail before any
// cache or upstream access.
func TestGetForecast_UnknownCity(t *testing.T) {
	mockClient := &mockWeatherClient{resp: cwaFixture("臺北市")}
	svc := NewWeatherService(mockClient, cache.NewInMemoryCache(30*time.Minute))

	_, _, err := svc.GetForecast(context.Background(), "atlantis")
	if !errors.Is(err, city.ErrUnknownCity) {
		t.Errorf("GetForecast(atlantis) error = %v, want ErrUnknownCity", err)
	}
	if mockClient.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", mockClient.calls)
	}
}

// TestGetForecast_EmptyLocation verifies a 2xx document without location
// records maps to ErrNoLocationData and nothing is cached.
func TestGetForecast_EmptyLocation(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockWeatherClient{resp: client.CWAResponse{}}
	store := cache.NewInMemoryCache(30 * time.Minute)
	svc := NewWeatherService(mockClient, store)

	_, _, err := svc.GetForecast(ctx, "taipei")
	if !errors.Is(err, ErrNoLocationData) {
		t.Fatalf("GetForecast() error = %v, want ErrNoLocationData", err)
	}
	if size, _ := store.Size(ctx); size != 0 {
		t.Errorf("cache size = %d, want 0 after failed fetch", size)
	}
}

// TestGetForecast_UpstreamError verifies upstream errors are wrapped and
// propagated without caching.
func TestGetForecast_UpstreamError(t *testing.T) {
	mockClient := &mockWeatherClient{err: client.ErrUpstreamTimeout}
	svc := NewWeatherService(mockClient, cache.NewInMemoryCache(30*time.Minute))

	_, _, err := svc.GetForecast(context.Background(), "taipei")
	if !errors.Is(err, client.ErrUpstreamTimeout) {
		t.Errorf("GetForecast() error = %v, want wrapped ErrUpstreamTimeout", err)
	}
}

// TestGetForecast_AbortedRequestStillCaches verifies a canceled inbound
// context does not stop the fetch result from being cached.
func TestGetForecast_AbortedRequestStillCaches(t *testing.T) {
	mockClient := &mockWeatherClient{resp: cwaFixture("臺北市")}
	store := cache.NewInMemoryCache(30 * time.Minute)
	svc := NewWeatherService(mockClient, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := svc.GetForecast(ctx, "taipei"); err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if size, _ := store.Size(context.Background()); size != 1 {
		t.Errorf("cache size = %d, want 1 (result cached despite canceled request)", size)
	}
}
