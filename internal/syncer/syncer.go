// Package syncer runs one mailbox sync for a user from stored settings. It is
// shared by the HTTP API and the sync-user command.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"mailtriage/internal/mailsource"
	"mailtriage/internal/models"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/store"

	"github.com/rs/zerolog"
)

// ErrNoSettings is returned when the user has not configured a mailbox
var ErrNoSettings = errors.New("email settings not configured")

// Settings loads the per-user configuration of a run
type Settings interface {
	GetEmailSettings(ctx context.Context, userID string) (*models.EmailSettings, error)
	GetAISettings(ctx context.Context, userID string) (models.AISettings, error)
}

// Recorder persists the outcome of a run
type Recorder interface {
	RecordSync(ctx context.Context, result models.SyncResult, runErr error) error
}

// SourceFactory builds a mail source from settings
type SourceFactory func(settings models.EmailSettings, opts mailsource.Options) (mailsource.Source, error)

// Syncer wires settings, source and pipeline together
type Syncer struct {
	settings   Settings
	pipeline   *pipeline.Pipeline
	recorder   Recorder
	newSource  SourceFactory
	sourceOpts mailsource.Options
	batchSize  int
	logger     zerolog.Logger
}

// Options configure a Syncer
type Options struct {
	Recorder      Recorder // Optional
	SourceFactory SourceFactory
	SourceOptions mailsource.Options
	BatchSize     int
	Logger        zerolog.Logger
}

// New creates a syncer
func New(settings Settings, p *pipeline.Pipeline, opts Options) *Syncer {
	if opts.SourceFactory == nil {
		opts.SourceFactory = mailsource.New
	}
	return &Syncer{
		settings:   settings,
		pipeline:   p,
		recorder:   opts.Recorder,
		newSource:  opts.SourceFactory,
		sourceOpts: opts.SourceOptions,
		batchSize:  opts.BatchSize,
		logger:     opts.Logger.With().Str("component", "syncer").Logger(),
	}
}

// Sync fetches and processes the newest messages of userID. With
// sampleFallback set, sample data replaces a mailbox that cannot be reached
// and the result is labeled accordingly.
func (s *Syncer) Sync(ctx context.Context, userID string, sampleFallback bool) (models.SyncResult, error) {
	emailSettings, err := s.settings.GetEmailSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.SyncResult{UserID: userID}, ErrNoSettings
		}
		return models.SyncResult{UserID: userID}, fmt.Errorf("failed to load email settings: %w", err)
	}

	aiSettings, err := s.settings.GetAISettings(ctx, userID)
	if err != nil {
		return models.SyncResult{UserID: userID}, fmt.Errorf("failed to load ai settings: %w", err)
	}

	req := pipeline.Request{
		UserID:     userID,
		AISettings: aiSettings,
		BatchSize:  s.batchSize,
	}
	if sampleFallback {
		req.Fallback = mailsource.NewSampleSource()
	}

	source, err := s.newSource(*emailSettings, s.sourceOpts)
	switch {
	case err == nil:
		req.Source = source
	case sampleFallback && mailsource.IsConnectionLevel(err):
		// Incomplete credentials count as unreachable
		req.Source = failedSource{err: err}
	default:
		s.record(ctx, models.SyncResult{UserID: userID}, err)
		return models.SyncResult{UserID: userID}, err
	}

	result, err := s.pipeline.Run(ctx, req)
	s.record(ctx, result, err)
	return result, err
}

// Import processes up to limit messages of source for userID with the user's
// AI settings. It needs no mailbox settings; a limit of zero or less imports
// everything.
func (s *Syncer) Import(ctx context.Context, userID string, source mailsource.Source, limit int) (models.SyncResult, error) {
	aiSettings, err := s.settings.GetAISettings(ctx, userID)
	if err != nil {
		return models.SyncResult{UserID: userID}, fmt.Errorf("failed to load ai settings: %w", err)
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}

	result, err := s.pipeline.Run(ctx, pipeline.Request{
		UserID:     userID,
		Source:     source,
		AISettings: aiSettings,
		BatchSize:  limit,
	})
	s.record(ctx, result, err)
	return result, err
}

// TestConnection logs in with settings and returns the inbox message count
func (s *Syncer) TestConnection(ctx context.Context, settings models.EmailSettings) (int, error) {
	source, err := s.newSource(settings, s.sourceOpts)
	if err != nil {
		return 0, err
	}
	tester, ok := source.(mailsource.Tester)
	if !ok {
		return 0, fmt.Errorf("source does not support connection tests")
	}
	return tester.TestConnection(ctx)
}

func (s *Syncer) record(ctx context.Context, result models.SyncResult, runErr error) {
	if s.recorder == nil {
		return
	}
	// The run context may already be done
	if err := s.recorder.RecordSync(context.WithoutCancel(ctx), result, runErr); err != nil {
		s.logger.Warn().Err(err).Str("user_id", result.UserID).Msg("Failed to record sync run")
	}
}

// failedSource reports a construction error on first fetch so the pipeline
// applies its fallback policy
type failedSource struct {
	err error
}

func (f failedSource) FetchBatch(context.Context, int) ([]models.RawMessage, error) {
	return nil, f.err
}
