// Package app builds the service graph shared by the server and the batch commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailtriage/internal/analytics"
	"mailtriage/internal/analyzer"
	"mailtriage/internal/config"
	"mailtriage/internal/mailsource"
	"mailtriage/internal/notify"
	"mailtriage/internal/openai"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/search"
	"mailtriage/internal/store"
	"mailtriage/internal/syncer"

	"github.com/rs/zerolog"
)

// App holds the wired services
type App struct {
	Config    *config.Config
	Store     *store.SQLStore
	Analytics *analytics.Service
	Pipeline  *pipeline.Pipeline
	Syncer    *syncer.Syncer
	Search    *search.Index        // nil when search is not configured or unreachable
	Scheduler *scheduler.Scheduler // nil unless requested and reachable

	closers []func() error
}

// Options select the optional parts of the graph
type Options struct {
	Scheduler bool // Connect to Kubernetes when cfg.SchedulerEnabled
	Search    bool // Connect to Qdrant when cfg.SearchEnabled()
}

// Build connects the store and wires everything on top of it. Optional
// backends that cannot be reached are logged and left nil.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*App, error) {
	s, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a := &App{Config: cfg, Store: s}
	a.closers = append(a.closers, s.Close)

	az, err := analyzer.New(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithWorkers(cfg.SyncWorkers),
		pipeline.WithLogger(logger),
	}

	if opts.Search && cfg.SearchEnabled() {
		if idx, err := a.openSearch(ctx, cfg, logger); err != nil {
			logger.Warn().Err(err).Msg("Search index unavailable, continuing without search")
		} else {
			a.Search = idx
			pipelineOpts = append(pipelineOpts, pipeline.WithIndexer(idx))
		}
	}

	if cfg.SendGridAPIKey != "" {
		pipelineOpts = append(pipelineOpts,
			pipeline.WithNotifier(notify.New(cfg.SendGridAPIKey, cfg.NotifyFromEmail, s, logger)))
		logger.Info().Msg("Task notifications enabled")
	}

	a.Analytics = analytics.NewService(s, logger)
	a.Pipeline = pipeline.New(s, az, pipelineOpts...)
	a.Syncer = syncer.New(s, a.Pipeline, syncer.Options{
		Recorder: a.Analytics,
		SourceOptions: mailsource.Options{
			Timeout: time.Duration(cfg.IMAPTimeout) * time.Second,
			Logger:  logger,
		},
		BatchSize: cfg.SyncBatchSize,
		Logger:    logger,
	})

	if opts.Scheduler && cfg.SchedulerEnabled {
		sched, err := scheduler.New(cfg.SchedulerNamespace, cfg.SyncImage, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Kubernetes unavailable, scheduled sync disabled")
		} else {
			a.Scheduler = sched
		}
	}

	return a, nil
}

func (a *App) openSearch(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*search.Index, error) {
	embedder, err := openai.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	idx, client, err := search.Open(ctx, cfg, embedder, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	logger.Info().Str("collection", cfg.QdrantCollection).Msg("Search index ready")
	return idx, nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
