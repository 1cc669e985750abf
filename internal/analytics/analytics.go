// Package analytics records sync history and computes dashboard statistics.
package analytics

import (
	"context"
	"fmt"
	"time"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/rs/zerolog"
)

// Store is the persistence the analytics service reads and writes
type Store interface {
	RecordSyncRun(ctx context.Context, run *models.SyncRun) error
	ListSyncRuns(ctx context.Context, userID string, limit int) ([]models.SyncRun, error)
	CountEmailsReceived(ctx context.Context, userID string, from, to time.Time) (int, error)
	CountTasks(ctx context.Context, filter store.TaskCountFilter) (int, error)
}

// Service handles sync history and dashboard counters
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new analytics service
func NewService(s Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.With().Str("component", "analytics").Logger(),
		now:    time.Now,
	}
}

// RecordSync persists the outcome of a run. runErr is the error that aborted
// the run, if any.
func (s *Service) RecordSync(ctx context.Context, result models.SyncResult, runErr error) error {
	run := &models.SyncRun{
		UserID:       result.UserID,
		Processed:    result.Processed,
		Skipped:      result.Skipped,
		Failed:       result.Failed,
		Partial:      result.Partial,
		UsedFallback: result.UsedFallback,
		Cancelled:    result.Cancelled,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	s.logger.Debug().Str("user_id", run.UserID).Str("run_id", run.ID).Msg("Recorded sync run")
	return nil
}

// History returns the most recent runs of a user, newest first
func (s *Service) History(ctx context.Context, userID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.store.ListSyncRuns(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// Dashboard computes today's counters and their value as of yesterday
func (s *Service) Dashboard(ctx context.Context, userID string) (models.DashboardStats, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)

	stats := models.DashboardStats{GeneratedAt: now}

	var err error
	if stats.EmailsToday, err = s.store.CountEmailsReceived(ctx, userID, today, today.AddDate(0, 0, 1)); err != nil {
		return stats, fmt.Errorf("failed to count emails: %w", err)
	}
	if stats.EmailsYesterday, err = s.store.CountEmailsReceived(ctx, userID, yesterday, today); err != nil {
		return stats, fmt.Errorf("failed to count emails: %w", err)
	}

	pending, completed := false, true
	counts := []struct {
		dst    *int
		filter store.TaskCountFilter
	}{
		{&stats.PendingTasks, store.TaskCountFilter{UserID: userID, Completed: &pending}},
		{&stats.CompletedTasks, store.TaskCountFilter{UserID: userID, Completed: &completed}},
		{&stats.PendingTasksYesterday, store.TaskCountFilter{UserID: userID, Completed: &pending, CreatedBefore: &today}},
		{&stats.CompletedTasksYesterday, store.TaskCountFilter{UserID: userID, Completed: &completed, CreatedBefore: &today}},
	}
	for _, c := range counts {
		if *c.dst, err = s.store.CountTasks(ctx, c.filter); err != nil {
			return stats, fmt.Errorf("failed to count tasks: %w", err)
		}
	}

	stats.Efficiency = percent(stats.CompletedTasks, stats.CompletedTasks+stats.PendingTasks)

	doneLastWeek, err := s.store.CountTasks(ctx, store.TaskCountFilter{UserID: userID, Completed: &completed, CreatedBefore: &weekAgo})
	if err != nil {
		return stats, fmt.Errorf("failed to count tasks: %w", err)
	}
	totalLastWeek, err := s.store.CountTasks(ctx, store.TaskCountFilter{UserID: userID, CreatedBefore: &weekAgo})
	if err != nil {
		return stats, fmt.Errorf("failed to count tasks: %w", err)
	}
	stats.EfficiencyLastWeek = percent(doneLastWeek, totalLastWeek)

	runs, err := s.store.ListSyncRuns(ctx, userID, 1)
	if err != nil {
		return stats, fmt.Errorf("failed to list sync runs: %w", err)
	}
	if len(runs) > 0 {
		stats.LastSync = &runs[0]
	}

	return stats, nil
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}
