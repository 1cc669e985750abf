package store

import (
	"context"
	"fmt"

	"mailtriage/internal/models"

	"github.com/google/uuid"
)

// RecordSyncRun appends a sync run to the user's history
func (s *SQLStore) RecordSyncRun(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	query := s.rebind(`INSERT INTO sync_runs
		(id, user_id, processed, skipped, failed, partial, used_fallback, cancelled, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.UserID, run.Processed, run.Skipped, run.Failed, run.Partial,
		run.UsedFallback, run.Cancelled, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns the user's most recent sync runs, newest first
func (s *SQLStore) ListSyncRuns(ctx context.Context, userID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.rebind(`SELECT id, user_id, processed, skipped, failed, partial, used_fallback, cancelled, error, started_at, finished_at
		FROM sync_runs WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`)

	runs := []models.SyncRun{}
	if err := s.db.SelectContext(ctx, &runs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}
