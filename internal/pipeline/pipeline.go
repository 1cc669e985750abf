// Package pipeline ingests a batch of messages for one user: fetch, parse,
// dedup, analyze and persist, with per-message outcomes.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mailtriage/internal/analyzer"
	"mailtriage/internal/mailsource"
	"mailtriage/internal/models"
	"mailtriage/internal/parser"

	"github.com/rs/zerolog"
)

// Worker pool bounds
const (
	DefaultWorkers   = 4
	MaxWorkers       = 10
	DefaultBatchSize = 10
)

// Store is the persistence the pipeline writes through
type Store interface {
	EmailExists(ctx context.Context, userID, externalID string) (bool, error)
	InsertEmail(ctx context.Context, email *models.StoredEmail) (bool, error)
	InsertTask(ctx context.Context, task *models.StoredTask) error
}

// Indexer receives every newly stored email
type Indexer interface {
	Index(ctx context.Context, email models.StoredEmail) error
}

// Notifier receives the tasks created for a newly stored email
type Notifier interface {
	NotifyTasks(ctx context.Context, userID string, email models.StoredEmail, tasks []models.StoredTask) error
}

// Pipeline runs sync batches. It is safe for concurrent use by different users.
type Pipeline struct {
	store    Store
	analyzer analyzer.Analyzer
	workers  int
	indexer  Indexer
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the number of messages processed in parallel, clamped to 1..10
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		switch {
		case n < 1:
			n = 1
		case n > MaxWorkers:
			n = MaxWorkers
		}
		p.workers = n
	}
}

// WithIndexer adds a search index sink
func WithIndexer(i Indexer) Option {
	return func(p *Pipeline) { p.indexer = i }
}

// WithNotifier adds a task notification sink
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock replaces time.Now, used for undated messages and run timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline writing to store and analyzing with a
func New(store Store, a analyzer.Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		analyzer: a,
		workers:  DefaultWorkers,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request describes one sync run
type Request struct {
	UserID     string
	Source     mailsource.Source
	Fallback   mailsource.Source // Used only when Source fails at connection level
	AISettings models.AISettings
	BatchSize  int
}

// Run fetches one batch and processes every message. A connection-level
// failure of the source is returned as an error unless a Fallback is set, in
// which case the fallback batch is processed and the result is marked
// UsedFallback. Per-message failures never abort the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (models.SyncResult, error) {
	logger := p.logger.With().Str("user_id", req.UserID).Logger()
	result := models.SyncResult{
		UserID:    req.UserID,
		StartedAt: p.now().UTC(),
		Results:   []models.MessageResult{},
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	source := req.Source
	raws, err := source.FetchBatch(ctx, batchSize)
	if err != nil {
		if req.Fallback == nil || !mailsource.IsConnectionLevel(err) {
			result.FinishedAt = p.now().UTC()
			return result, fmt.Errorf("fetching messages: %w", err)
		}

		logger.Warn().Err(err).Msg("Mailbox unavailable, processing fallback data")
		source = req.Fallback
		result.UsedFallback = true
		raws, err = source.FetchBatch(ctx, batchSize)
		if err != nil {
			result.FinishedAt = p.now().UTC()
			return result, fmt.Errorf("fetching fallback messages: %w", err)
		}
	}

	a := analyzer.Configure(p.analyzer, analyzer.OptionsFrom(req.AISettings))
	outcomes := p.processAll(ctx, a, req.UserID, raws)

	var seen []uint32
	for i, out := range outcomes {
		if out == nil {
			// Not started before cancellation
			result.Cancelled = true
			continue
		}
		result.Results = append(result.Results, *out)

		switch out.Status {
		case models.StatusSuccess:
			result.Processed++
		case models.StatusPartial:
			result.Processed++
			result.Partial++
		case models.StatusDuplicate:
			result.Skipped++
		case models.StatusFailed:
			result.Failed++
		}

		if out.Status != models.StatusFailed && raws[i].Ref > 0 {
			seen = append(seen, raws[i].Ref)
		}
	}

	if req.AISettings.MarkEmailAsRead && !result.UsedFallback && len(seen) > 0 {
		if marker, ok := source.(mailsource.Marker); ok {
			if err := marker.MarkSeen(ctx, seen); err != nil {
				logger.Warn().Err(err).Int("count", len(seen)).Msg("Failed to mark messages as read on server")
			}
		}
	}

	result.FinishedAt = p.now().UTC()
	logger.Info().
		Int("fetched", len(raws)).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("partial", result.Partial).
		Bool("used_fallback", result.UsedFallback).
		Bool("cancelled", result.Cancelled).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Sync run finished")

	return result, nil
}

// processAll fans messages out to the worker pool. The returned slice keeps
// fetch order; nil entries were never started because ctx was done.
func (p *Pipeline) processAll(ctx context.Context, a analyzer.Analyzer, userID string, raws []models.RawMessage) []*models.MessageResult {
	outcomes := make([]*models.MessageResult, len(raws))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out := p.processOne(ctx, a, userID, raws[i])
				outcomes[i] = &out
			}
		}()
	}

feed:
	for i := range raws {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processOne drives a single message through parse, dedup, analyze and persist
func (p *Pipeline) processOne(ctx context.Context, a analyzer.Analyzer, userID string, raw models.RawMessage) models.MessageResult {
	msg, err := parser.ParseWithClock(raw.Data, p.now)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Uint32("ref", raw.Ref).Msg("Skipping unparseable message")
		return models.MessageResult{Status: models.StatusFailed, Error: err.Error()}
	}

	out := models.MessageResult{ExternalID: msg.ExternalID, Subject: msg.Subject}
	logger := p.logger.With().Str("user_id", userID).Str("external_id", msg.ExternalID).Logger()

	exists, err := p.store.EmailExists(ctx, userID, msg.ExternalID)
	if err != nil {
		out.Status, out.Error = models.StatusFailed, err.Error()
		logger.Error().Err(err).Msg("Dedup check failed")
		return out
	}
	if exists {
		out.Status = models.StatusDuplicate
		return out
	}

	analysis, analyzeErr := a.Analyze(ctx, msg)

	email := models.StoredEmail{
		UserID:      userID,
		EmailID:     msg.ExternalID,
		Subject:     msg.Subject,
		SenderName:  msg.SenderName,
		SenderEmail: msg.SenderEmail,
		ReceivedAt:  msg.ReceivedAt,
		Body:        msg.Body,
	}
	if analyzeErr == nil {
		summary := analysis.Summary
		email.Summary = &summary
	}

	inserted, err := p.store.InsertEmail(ctx, &email)
	if err != nil {
		out.Status, out.Error = models.StatusFailed, err.Error()
		logger.Error().Err(err).Msg("Failed to store email")
		return out
	}
	if !inserted {
		// Stored concurrently by another run
		out.Status = models.StatusDuplicate
		return out
	}
	out.EmailID = email.ID

	if analyzeErr != nil {
		out.Status, out.Error = models.StatusPartial, "analysis failed: "+analyzeErr.Error()
		logger.Warn().Err(analyzeErr).Bool("rate_limited", analyzer.IsRateLimit(analyzeErr)).Msg("Stored email without analysis")
		p.index(ctx, logger, email)
		return out
	}

	out.Status = models.StatusSuccess
	created := make([]models.StoredTask, 0, len(analysis.Tasks))
	for _, extracted := range analysis.Tasks {
		task := models.StoredTask{
			UserID:      userID,
			EmailID:     email.ID,
			Description: extracted.Description,
			Priority:    extracted.Priority,
			DueDate:     DueDate(extracted.Priority, msg.ReceivedAt),
		}
		if err := p.store.InsertTask(ctx, &task); err != nil {
			logger.Error().Err(err).Msg("Failed to store task")
			if out.Status != models.StatusPartial {
				out.Status, out.Error = models.StatusPartial, err.Error()
			}
			continue
		}
		created = append(created, task)
	}
	out.TasksCreated = len(created)

	p.index(ctx, logger, email)
	if p.notifier != nil && len(created) > 0 {
		if err := p.notifier.NotifyTasks(ctx, userID, email, created); err != nil {
			logger.Warn().Err(err).Msg("Task notification failed")
		}
	}

	return out
}

func (p *Pipeline) index(ctx context.Context, logger zerolog.Logger, email models.StoredEmail) {
	if p.indexer == nil {
		return
	}
	if err := p.indexer.Index(ctx, email); err != nil {
		logger.Warn().Err(err).Msg("Search indexing failed")
	}
}

// DueDate gives high-priority tasks a due date of the day after the email
// arrived. Other priorities have none.
func DueDate(priority models.Priority, receivedAt time.Time) *time.Time {
	if priority != models.PriorityHigh {
		return nil
	}
	received := receivedAt.UTC()
	due := time.Date(received.Year(), received.Month(), received.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return &due
}
