package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamgordonbell/c3-azure-demo/pkg/ai"
	"github.com/adamgordonbell/c3-azure-demo/pkg/api"
	"github.com/adamgordonbell/c3-azure-demo/pkg/cache"
	"github.com/adamgordonbell/c3-azure-demo/pkg/config"
	"github.com/adamgordonbell/c3-azure-demo/pkg/jokes"
	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
	"github.com/adamgordonbell/c3-azure-demo/pkg/middleware"
	"github.com/adamgordonbell/c3-azure-demo/pkg/storage"
)

func main() {
	// 1. Load config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		logger.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		logger.Error("config could not be read")
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("starting joke service", logger.String("app", cfg.App.Name))

	// 2. Redis is optional: without it the service still serves jokes,
	// it just stops counting them.
	var rdb *cache.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, usage tracking disabled", logger.Err(err))
			rdb = nil
		} else {
			logger.Info("connected to redis", logger.String("address", cfg.Redis.Address))
		}
	}

	var store storage.Store
	if rdb != nil {
		store = storage.NewRedisStore(rdb)
	}
	usage := storage.NewUsage(store)

	// 3. Core components
	completions := ai.NewClient(func() config.CompletionConfig {
		if c := cfgStore.Get(); c != nil {
			return c.Completion
		}
		return config.CompletionConfig{}
	})
	bank := jokes.NewBank()

	apiMux := http.NewServeMux()
	api.NewJokeAPI(completions, bank, usage).RegisterRoutes(apiMux)

	// 4. Chain middleware (inner-most first)
	var handler http.Handler = apiMux
	handler = middleware.NewRateLimiter(rdb, cfgStore)(handler)
	handler = middleware.APIKeyAuth(cfgStore)(handler)
	handler = middleware.Metrics(handler)
	handler = middleware.RequestLogger(handler)

	mux := http.NewServeMux()
	mux.Handle("/api/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", logger.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", logger.Err(err))
	}
	logger.Info("stopped gracefully")
}
