package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ichiro17/CwaWeather-backend/internal/cache"
	"github.com/ichiro17/CwaWeather-backend/internal/city"
	"github.com/ichiro17/CwaWeather-backend/internal/client"
	"github.com/ichiro17/CwaWeather-backend/internal/config"
	"github.com/ichiro17/CwaWeather-backend/internal/forecast"
	"github.com/ichiro17/CwaWeather-backend/internal/service"
)

// endpoints is the catalog returned by /api, / (JSON clients) and 404 bodies.
var endpoints = []string{
	"GET /api/weather/{city}",
	"GET /api/health",
	"GET /api/debug",
	"POST /api/cache/clear",
	"GET /api",
	"GET /metrics",
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	cache          cache.Cache
	cfg            *config.Config
	logger         *zap.Logger
	startTime      time.Time
	// cachePing, when set, is called by the health handler to check
	// backend reachability (memcached, redis).
	cachePing func() error
	// indexFile is the HTML asset served to browsers at /. Empty disables it.
	indexFile string
}

// NewHandler returns a new Handler.
func NewHandler(
	weatherService *service.WeatherService,
	cacheSvc cache.Cache,
	cfg *config.Config,
	logger *zap.Logger,
	cachePing func() error,
	indexFile string,
) *Handler {
	return &Handler{
		weatherService: weatherService,
		cache:          cacheSvc,
		cfg:            cfg,
		logger:         logger,
		startTime:      time.Now(),
		cachePing:      cachePing,
		indexFile:      indexFile,
	}
}

// GetWeather handles GET /api/weather/{city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	cityKey := strings.TrimSpace(mux.Vars(r)["city"])
	if cityKey == "" {
		writeError(w, r, http.StatusBadRequest, "UNSUPPORTED_CITY", "city is required")
		return
	}

	result, cached, err := h.weatherService.GetForecast(r.Context(), cityKey)
	if err != nil {
		h.writeWeatherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
		"cached":  cached,
	})
}

// writeWeatherError maps the service/client error taxonomy to HTTP statuses.
// Internal detail is logged, never returned, outside dev mode.
func (h *Handler) writeWeatherError(w http.ResponseWriter, r *http.Request, err error) {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("weather request failed", zap.Error(err))
	}

	switch {
	case errors.Is(err, city.ErrUnknownCity):
		writeError(w, r, http.StatusBadRequest, "UNSUPPORTED_CITY",
			"unsupported city, expected one of: "+strings.Join(city.Keys(), ", "))
	case errors.Is(err, client.ErrMissingAPIKey):
		writeError(w, r, http.StatusInternalServerError, "MISSING_API_KEY", "weather API key not configured")
	case errors.Is(err, client.ErrInvalidAPIKey):
		writeError(w, r, http.StatusInternalServerError, "INVALID_API_KEY", "weather API credential rejected by upstream")
	case errors.Is(err, client.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", "rate limited by upstream weather API")
	case errors.Is(err, client.ErrUpstreamTimeout):
		writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "upstream weather API timed out")
	case errors.Is(err, service.ErrNoLocationData):
		writeError(w, r, http.StatusNotFound, "NO_FORECAST_DATA", "upstream returned no data for this city")
	case errors.Is(err, forecast.ErrNoElements), errors.Is(err, client.ErrMalformedResponse):
		writeError(w, r, http.StatusInternalServerError, "MALFORMED_UPSTREAM", "could not parse upstream weather data")
	default:
		var statusErr *client.UpstreamStatusError
		if errors.As(err, &statusErr) {
			writeError(w, r, statusErr.Code, "UPSTREAM_ERROR", "upstream weather API error")
			return
		}
		msg := "internal error"
		if h.cfg != nil && h.cfg.DevMode {
			msg = err.Error()
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", msg)
	}
}

// GetHealth handles GET /api/health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	size, _ := h.cache.Size(r.Context())
	resp := map[string]interface{}{
		"status":        "OK",
		"uptime":        int(time.Since(h.startTime).Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"cache_size":    size,
		"cache_backend": h.cfg.CacheBackend,
	}
	statusCode := http.StatusOK
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			resp["status"] = "DEGRADED"
			resp["cache"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			resp["cache"] = "healthy"
		}
	}
	writeJSON(w, statusCode, resp)
}

// GetDebug handles GET /api/debug. Reports credential presence and length,
// never the value.
func (h *Handler) GetDebug(w http.ResponseWriter, r *http.Request) {
	size, _ := h.cache.Size(r.Context())
	keys, _ := h.cache.Keys(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"env": map[string]interface{}{
			"env_name":        os.Getenv("ENV_NAME"),
			"api_key_present": h.cfg.APIKey != "",
			"api_key_length":  len(h.cfg.APIKey),
			"api_base_url":    h.cfg.APIBaseURL,
			"port":            h.cfg.Port,
			"allowed_origins": h.cfg.AllowedOrigins,
			"cache_backend":   h.cfg.CacheBackend,
			"cache_ttl":       h.cfg.CacheTTL.String(),
		},
		"cache": map[string]interface{}{
			"size": size,
			"keys": keys,
		},
		"uptime": int(time.Since(h.startTime).Seconds()),
	})
}

// PostCacheClear handles POST /api/cache/clear.
func (h *Handler) PostCacheClear(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Clear(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "CACHE_CLEAR_FAILED", "could not clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleared",
		"removed": removed,
	})
}

// GetAPIIndex handles GET /api. Returns service and endpoint discovery metadata.
func (h *Handler) GetAPIIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "cwa-weather-backend",
		"endpoints": endpoints,
		"cities":    city.Keys(),
	})
}

// GetRoot handles GET /. Browsers get the HTML asset when one is configured;
// everyone else gets the endpoint catalog.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	if h.indexFile != "" && strings.Contains(r.Header.Get("Accept"), "text/html") {
		if _, err := os.Stat(h.indexFile); err == nil {
			http.ServeFile(w, r, h.indexFile)
			return
		}
	}
	h.GetAPIIndex(w, r)
}

// NotFound handles unknown routes with the endpoint catalog.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"success":   false,
		"message":   "unknown route: " + r.Method + " " + r.URL.Path,
		"endpoints": endpoints,
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
