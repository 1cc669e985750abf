package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailtriage/internal/app"
	"mailtriage/internal/config"
	"mailtriage/internal/server"
)

// @title Mailtriage API
// @version 1.0
// @description Mailbox ingestion with AI summaries and task extraction
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg, app.Options{Scheduler: true, Search: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()
	logger.Info().Msg("Database connection established successfully")

	// Create and initialize server
	srv := server.New(cfg, server.Deps{
		Store:     services.Store,
		Syncer:    services.Syncer,
		Analytics: services.Analytics,
		Search:    services.Search,
		Scheduler: services.Scheduler,
	}, logger)
	srv.Initialize()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
