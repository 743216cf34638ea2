package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ichiro17/CwaWeather-backend/internal/cache"
	"github.com/ichiro17/CwaWeather-backend/internal/city"
	"github.com/ichiro17/CwaWeather-backend/internal/client"
	"github.com/ichiro17/CwaWeather-backend/internal/forecast"
	"github.com/ichiro17/CwaWeather-backend/internal/models"
	"github.com/ichiro17/CwaWeather-backend/internal/observability"
)

// ErrNoLocationData is returned when the upstream answers 2xx but the
// document carries no location record for the requested city. Maps to 404.
var ErrNoLocationData = errors.New("no location data in upstream response")

// WeatherService orchestrates forecast retrieval using the cache-aside
// pattern with a single upstream fallback. Concurrent misses for the same
// key may each fetch upstream; the last Set wins, which is fine since both
// fetched equivalent data.
type WeatherService struct {
	client client.WeatherClient
	cache  cache.Cache
	now    func() time.Time
}

// NewWeatherService creates a WeatherService with the provided dependencies.
func NewWeatherService(client client.WeatherClient, cache cache.Cache) *WeatherService {
	return &WeatherService{
		client: client,
		cache:  cache,
		now:    time.Now,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetForecast resolves cityKey against the fixed city set and returns its
// forecast plus whether it was served from cache. The upstream call runs on
// a context detached from inbound cancellation so an aborted client still
// populates the cache for the next request.
func (s *WeatherService) GetForecast(ctx context.Context, cityKey string) (models.ForecastResult, bool, error) {
	entry, err := city.Resolve(cityKey)
	if err != nil {
		return models.ForecastResult{}, false, err
	}
	start := time.Now()
	logger := loggerFromContext(ctx)
	observability.ForecastQueriesTotal.WithLabelValues(entry.Key).Inc()

	cached, ok, err := s.cache.Get(ctx, entry.Key)
	if err != nil {
		if logger != nil {
			logger.Warn("cache get failed", zap.String("city", entry.Key), zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(entry.Key).Inc()
		if logger != nil {
			logger.Debug("forecast served", zap.String("city", entry.Key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, true, nil
	}
	observability.CacheMissesTotal.WithLabelValues(entry.Key).Inc()

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("city", entry.Key))
	}

	upstreamCtx := detachCancellation(ctx)
	resp, err := s.client.GetForecast(upstreamCtx, entry.Name)
	if err != nil {
		return models.ForecastResult{}, false, fmt.Errorf("fetch forecast for %s: %w", entry.Key, err)
	}

	if len(resp.Records.Location) == 0 {
		return models.ForecastResult{}, false, fmt.Errorf("%w: city %s", ErrNoLocationData, entry.Key)
	}

	result, err := forecast.Build(resp.Records.Location[0], entry.Key, s.now())
	if err != nil {
		return models.ForecastResult{}, false, fmt.Errorf("build forecast for %s: %w", entry.Key, err)
	}

	if setErr := s.cache.Set(upstreamCtx, entry.Key, result); setErr != nil {
		if logger != nil {
			logger.Warn("cache set failed", zap.String("city", entry.Key), zap.Error(setErr))
		}
	}
	if logger != nil {
		logger.Debug("forecast served", zap.String("city", entry.Key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return result, false, nil
}

// detachCancellation keeps the values of ctx (logger, correlation ID) but
// drops its deadline and cancellation. The client applies its own timeout.
func detachCancellation(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
