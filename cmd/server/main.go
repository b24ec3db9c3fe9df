// Package main is the entry point for the sales-cycle API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salescycle/internal/app"
	"salescycle/internal/config"
	v1 "salescycle/internal/infrastructure/http/v1"
	"salescycle/internal/infrastructure/http/v1/handlers"
	"salescycle/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
		Service:     "salescycle",
		Version:     version,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting salescycle server", "env", cfg.App.Env, "version", version)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	a.Invalidator.Start(ctx)
	a.Pool.LogStats(ctx)

	var checks map[string]handlers.Pinger
	if a.Redis != nil {
		checks = map[string]handlers.Pinger{"redis": redisPinger{a}}
	}

	var history handlers.HistoryReader
	if a.AuditStore != nil {
		history = a.AuditStore
	}

	router := v1.NewRouter(v1.RouterConfig{
		Service:      a.Service,
		Logger:       log,
		Pool:         a.Pool,
		Version:      version,
		Display:      a.Display,
		Activity:     a.Activity,
		History:      history,
		Idempotency:  a.Idempotency,
		HealthChecks: checks,
		Debug:        cfg.IsDevelopment(),
	})

	if a.Idempotency != nil {
		go cleanupIdempotency(ctx, a, cfg.HTTP.IdempotencyTTL)
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// In-flight consolidations hold row locks; give them time to commit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

type redisPinger struct{ a *app.App }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.a.Redis.Ping(ctx).Err()
}

// cleanupIdempotency removes expired keys periodically.
func cleanupIdempotency(ctx context.Context, a *app.App, ttl time.Duration) {
	interval := ttl
	if interval <= 0 || interval > time.Hour {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Idempotency.CleanupExpired(ctx)
			if err != nil {
				logger.Warn(ctx, "idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "idempotency keys expired", "count", n)
			}
		}
	}
}
