// Package main is the entry point for the treasury allocation controller.
// It wires the ledger, its lending strategy and the audit trail, serves the
// HTTP API and runs the background jobs until it receives a shutdown signal.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/treasury/internal/config"
	"github.com/aristath/treasury/internal/di"
	"github.com/aristath/treasury/internal/server"
	"github.com/aristath/treasury/pkg/logger"
)

func main() {
	// Load configuration first to get log level
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

	log.Info().Bool("dev_mode", cfg.DevMode).Msg("Starting treasury")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	// Record a baseline snapshot so reporting has data before the first tick
	if err := container.Scheduler.RunNow(jobs.Snapshot); err != nil {
		log.Warn().Err(err).Msg("Initial snapshot failed")
	}
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:        log,
		Runtime:    container.Runtime,
		Events:     container.EventManager,
		Roles:      container.Roles,
		Ledger:     container.Ledger,
		Reporting:  container.Reporting,
		Book:       container.Book,
		Strategies: container.Strategies,
		Venue:      container.Venue,
		Gatherer:   container.MetricsRegistry,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Treasury started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let running jobs finish before the database closes
	container.Scheduler.Stop()

	// Final archive pass so the bucket holds everything committed
	if jobs.Archive != nil {
		if err := container.Scheduler.RunNow(jobs.Archive); err != nil {
			log.Error().Err(err).Msg("Final archive run failed")
		}
	}

	log.Info().Msg("Server stopped")
}
