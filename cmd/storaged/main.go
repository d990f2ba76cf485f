package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/nstore/internal/api"
	"github.com/onnwee/nstore/internal/api/handlers"
	"github.com/onnwee/nstore/internal/config"
	"github.com/onnwee/nstore/internal/errorreporting"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/metrics"
	"github.com/onnwee/nstore/internal/middleware"
	"github.com/onnwee/nstore/internal/server"
	"github.com/onnwee/nstore/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	if err := errorreporting.Init(cfg.SentryEnvironment); err != nil {
		logger.Warn("Sentry initialization failed", "error", err)
	}
	defer errorreporting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init("storaged")
	if err != nil {
		logger.Warn("Tracing initialization failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := handlers.NewHub()
	go hub.Run(ctx)

	srv, err := server.New(cfg, hub.Broadcast)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.StorageRoot, cfg.CollectInterval)
	go collector.Start(ctx)

	var limiter *middleware.RateLimiter
	if cfg.EnableRateLimit {
		limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
		defer limiter.Stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(srv, hub, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Ops API listening",
			"addr", cfg.ListenAddr,
			"storage_root", cfg.StorageRoot,
			"mode", cfg.StorageMode.String(),
			"persistent", cfg.StorageEnabled && cfg.StorageRoot != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	hub.Stop()
	collector.Stop()

	// Auto-mode stores get their final flush here.
	if err := srv.CloseAll(); err != nil {
		logger.Error("Store shutdown failed", "error", err)
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}
	logger.Info("Shutdown complete")
}
