// Command sync-user runs one mailbox sync for a user. The scheduler starts it
// from CronJobs and on-demand Jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"mailtriage/internal/app"
	"mailtriage/internal/config"
)

func main() {
	userID := flag.String("user", "", "User whose mailbox is synced")
	sample := flag.Bool("sample", false, "Use labeled sample data when the mailbox is unreachable (requires ALLOW_SAMPLE_FALLBACK)")
	flag.Parse()

	if *userID == "" {
		fmt.Println("Usage: sync-user -user <id> [-sample]")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("user_id", *userID).Logger()

	if *sample && !cfg.AllowSampleFallback {
		logger.Fatal().Msg("Sample fallback is disabled on this deployment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.SyncTimeout)*time.Second)
	defer cancel()

	services, err := app.Build(ctx, cfg, app.Options{Search: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}

	start := time.Now()
	result, err := services.Syncer.Sync(ctx, *userID, *sample)
	_ = services.Close()
	if err != nil {
		logger.Error().Err(err).Msg("Sync failed")
		os.Exit(1)
	}

	logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("partial", result.Partial).
		Bool("used_fallback", result.UsedFallback).
		Dur("duration", time.Since(start)).
		Msg("Sync completed")

	if result.Failed > 0 {
		os.Exit(1)
	}
}
