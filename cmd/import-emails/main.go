package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"mailtriage/internal/app"
	"mailtriage/internal/config"
	"mailtriage/internal/mailsource"
)

func main() {
	// Parse command line flags
	userID := flag.String("user", "", "User the imported emails belong to")
	emlPath := flag.String("eml", "", "Path to EML file or directory containing EML files")
	mboxPath := flag.String("mbox", "", "Path to MBOX file")
	limit := flag.Int("limit", 0, "Import only the newest N messages (0 = all)")
	index := flag.Bool("index", true, "Add imported emails to the search index when configured")
	flag.Parse()

	path := *emlPath
	if path == "" {
		path = *mboxPath
	}
	if *userID == "" || path == "" || (*emlPath != "" && *mboxPath != "") {
		fmt.Println("Usage:")
		fmt.Println("  Import EML files:  import-emails -user <id> -eml /path/to/file.eml")
		fmt.Println("  Import directory:  import-emails -user <id> -eml /path/to/directory")
		fmt.Println("  Import MBOX:       import-emails -user <id> -mbox /path/to/file.mbox")
		fmt.Println("  Skip indexing:     import-emails -user <id> -eml /path -index=false")
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	logger := cfg.SetupLogger().With().Str("user_id", *userID).Logger()

	ctx := context.Background()
	services, err := app.Build(ctx, cfg, app.Options{Search: *index}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	source, err := mailsource.NewFileSource(path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open input")
	}

	start := time.Now()
	result, err := services.Syncer.Import(ctx, *userID, source, *limit)
	if err != nil {
		logger.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d emails (%d duplicates skipped, %d failed, %d without analysis) in %v\n",
		result.Processed, result.Skipped, result.Failed, result.Partial, time.Since(start).Round(time.Millisecond))
	for _, r := range result.Results {
		if r.Error != "" {
			fmt.Printf("  %s: %s\n", r.Subject, r.Error)
		}
	}
}
