package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ichiro17/CwaWeather-backend/internal/cache"
	"github.com/ichiro17/CwaWeather-backend/internal/client"
	"github.com/ichiro17/CwaWeather-backend/internal/config"
	httphandler "github.com/ichiro17/CwaWeather-backend/internal/http"
	"github.com/ichiro17/CwaWeather-backend/internal/observability"
	"github.com/ichiro17/CwaWeather-backend/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// .env is a local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.APIKey == "" {
		logger.Warn("CWA_API_KEY not set; weather requests will fail until configured")
	}

	weatherClient := client.NewCWAClient(cfg.APIKey, cfg.APIBaseURL, cfg.APITimeout)

	var cacheSvc cache.Cache
	var cachePing func() error
	var closeCache func() error
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.CacheTTL, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		cacheSvc = mc
		cachePing = mc.Ping
		closeCache = mc.Close
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisCache(connectCtx, cfg.RedisURL, cfg.CacheTTL)
		cancel()
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		cacheSvc = rc
		cachePing = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rc.Ping(ctx)
		}
		closeCache = rc.Close
		logger.Info("cache backend: redis")
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.CacheTTL)
		logger.Info("cache backend: in_memory", zap.Duration("ttl", cfg.CacheTTL))
	}

	weatherService := service.NewWeatherService(weatherClient, cacheSvc)
	handler := httphandler.NewHandler(weatherService, cacheSvc, cfg, logger, cachePing, "web/index.html")

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	router.HandleFunc("/", handler.GetRoot).Methods("GET")
	router.HandleFunc("/api", handler.GetAPIIndex).Methods("GET")
	router.HandleFunc("/api/health", handler.GetHealth).Methods("GET")
	router.HandleFunc("/api/debug", handler.GetDebug).Methods("GET")
	router.HandleFunc("/api/cache/clear", handler.PostCacheClear).Methods("POST")
	router.HandleFunc("/api/weather/{city}", handler.GetWeather).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	corsOpts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
	}
	corsRouter := handlers.CORS(corsOpts...)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if closeCache != nil {
		if err := closeCache(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
