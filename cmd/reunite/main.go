package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/config"
	"github.com/dukerupert/reunite/internal/database"
	"github.com/dukerupert/reunite/internal/feed"
	"github.com/dukerupert/reunite/internal/logging"
	"github.com/dukerupert/reunite/internal/metrics"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = seal.RandomSecret()
		if err != nil {
			slog.Error("failed to generate session secret", "error", err)
			os.Exit(1)
		}
		slog.Warn("REUNITE_SESSION_SECRET not set; sessions will not survive a restart")
	}
	sealer, err := seal.New(secret)
	if err != nil {
		slog.Error("failed to create token sealer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	client := api.New(cfg.APIURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithLogger(logger.With("component", "api")),
		api.WithMetrics(m),
	)
	feedManager := feed.NewManager(cfg.PollInterval, logger.With("component", "feed"), m)

	srv, err := server.New(db, cfg, client, sealer, feedManager, m, logger)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Live claim feeds are hijacked connections; Shutdown does not wait
	// for them, so end them explicitly.
	httpServer.RegisterOnShutdown(feedManager.Close)

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Prune()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("reunite starting", "addr", ":"+cfg.Port, "api", cfg.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
