package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailtriage/internal/models"
)

// GetEmailSettings returns the user's mailbox settings or ErrNotFound
func (s *SQLStore) GetEmailSettings(ctx context.Context, userID string) (*models.EmailSettings, error) {
	query := s.rebind(`SELECT user_id, protocol, server, port, username, password, use_ssl, fetch_frequency, updated_at
		FROM email_settings WHERE user_id = ?`)

	var settings models.EmailSettings
	if err := s.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email settings: %w", err)
	}
	return &settings, nil
}

// SaveEmailSettings creates or replaces the user's mailbox settings
func (s *SQLStore) SaveEmailSettings(ctx context.Context, settings *models.EmailSettings) error {
	settings.UpdatedAt = now()

	insert := `INSERT INTO email_settings (user_id, protocol, server, port, username, password, use_ssl, fetch_frequency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	query := s.rebind(s.dialect.upsert(insert, []string{"user_id"},
		[]string{"protocol", "server", "port", "username", "password", "use_ssl", "fetch_frequency", "updated_at"}))

	_, err := s.db.ExecContext(ctx, query,
		settings.UserID, settings.Protocol, settings.Server, settings.Port, settings.Username,
		settings.Password, settings.UseSSL, settings.FetchFrequency, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save email settings: %w", err)
	}
	return nil
}

// GetAISettings returns the user's AI settings, or the defaults when none were saved
func (s *SQLStore) GetAISettings(ctx context.Context, userID string) (models.AISettings, error) {
	query := s.rebind(`SELECT user_id, process_email_body, extract_action_items, mark_email_as_read, updated_at
		FROM ai_settings WHERE user_id = ?`)

	var settings models.AISettings
	if err := s.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultAISettings(userID), nil
		}
		return models.AISettings{}, fmt.Errorf("failed to get ai settings: %w", err)
	}
	return settings, nil
}

// SaveAISettings creates or replaces the user's AI settings
func (s *SQLStore) SaveAISettings(ctx context.Context, settings *models.AISettings) error {
	settings.UpdatedAt = now()

	insert := `INSERT INTO ai_settings (user_id, process_email_body, extract_action_items, mark_email_as_read, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	query := s.rebind(s.dialect.upsert(insert, []string{"user_id"},
		[]string{"process_email_body", "extract_action_items", "mark_email_as_read", "updated_at"}))

	_, err := s.db.ExecContext(ctx, query,
		settings.UserID, settings.ProcessEmailBody, settings.ExtractActionItems, settings.MarkEmailAsRead, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save ai settings: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
