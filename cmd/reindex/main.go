// Command reindex rebuilds the search index entries of a user from the store.
// It runs as a maintenance job after an embedding model or collection change.
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
	userID := flag.String("user", "", "User whose emails are reindexed")
	flag.Parse()

	if *userID == "" {
		fmt.Println("Usage: reindex -user <id>")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("user_id", *userID).Logger()
	logger.Info().Msg("Starting search reindex")

	if !cfg.SearchEnabled() {
		logger.Fatal().Msg("Search is not configured: set QDRANT_HOST and an OpenAI or Azure OpenAI key")
	}

	ctx := context.Background()
	services, err := app.Build(ctx, cfg, app.Options{Search: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	if services.Search == nil {
		logger.Error().Msg("Search index unavailable")
		os.Exit(1)
	}

	start := time.Now()
	count, err := services.Search.Reindex(ctx, services.Store, *userID)
	if err != nil {
		logger.Error().Err(err).Int("indexed", count).Msg("Reindex failed")
		os.Exit(1)
	}

	logger.Info().Int("indexed", count).Dur("duration", time.Since(start)).Msg("Reindex completed")
}
