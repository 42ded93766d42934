// Package main is the entry point for the portfolio tracker service.
// It keeps a local set of crypto holdings priced against a public market
// data provider and serves the priced view over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/cht-holly/chtholly-vault/internal/di"
	"github.com/cht-holly/chtholly-vault/internal/server"
	"github.com/cht-holly/chtholly-vault/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from the environment (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies (database, repositories, clients, services, jobs)
// 4. Starts the HTTP server, the scheduler and the portfolio service
// 5. Waits for a shutdown signal and shuts down in reverse order
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting portfolio tracker")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Background refreshes are bounded by ctx; cancelling it aborts an
	// in-flight cycle on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container.Start(ctx)
	log.Info().Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancel()
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close state database")
	}

	log.Info().Msg("Server stopped")
}
