package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/database"
	"mailtriage/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const emailColumns = `id, user_id, email_id, subject, sender_name, sender_email,
	received_at, body, summary, {READ}, starred, created_at, updated_at`

// EmailExists reports whether the user already has a message with this external id
func (s *SQLStore) EmailExists(ctx context.Context, userID, externalID string) (bool, error) {
	var n int
	query := s.rebind("SELECT COUNT(*) FROM emails WHERE user_id = ? AND email_id = ?")
	if err := s.db.GetContext(ctx, &n, query, userID, externalID); err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return n > 0, nil
}

// InsertEmail stores the email unless (user_id, email_id) is already present.
// It returns false without error when the row existed; ID and timestamps are
// filled in when empty.
func (s *SQLStore) InsertEmail(ctx context.Context, email *models.StoredEmail) (bool, error) {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	ts := now()
	if email.CreatedAt.IsZero() {
		email.CreatedAt = ts
	}
	email.UpdatedAt = ts

	insert := s.dialect.sql(`INSERT INTO emails (` + emailColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	query := s.rebind(s.dialect.insertIgnore(insert, "user_id", "email_id"))

	res, err := s.db.ExecContext(ctx, query,
		email.ID, email.UserID, email.EmailID, email.Subject, email.SenderName, email.SenderEmail,
		email.ReceivedAt.UTC(), email.Body, email.Summary, email.Read, email.Starred,
		email.CreatedAt, email.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert email %s: %w", email.EmailID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListEmails returns the user's emails, newest first, with their task counts
func (s *SQLStore) ListEmails(ctx context.Context, filter EmailFilter) ([]models.StoredEmail, error) {
	conditions := []string{"e.user_id = ?"}
	args := []interface{}{filter.UserID}

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions,
			"(LOWER(e.subject) LIKE ? OR LOWER(e.sender_name) LIKE ? OR LOWER(e.sender_email) LIKE ? OR LOWER(e.body) LIKE ?)")
		pattern := likePattern(q)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if filter.Unread != nil {
		conditions = append(conditions, "e.{READ} = ?")
		args = append(args, !*filter.Unread)
	}
	if filter.Starred != nil {
		conditions = append(conditions, "e.starred = ?")
		args = append(args, *filter.Starred)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := `SELECT e.id, e.user_id, e.email_id, e.subject, e.sender_name, e.sender_email,
			e.received_at, e.body, e.summary, e.{READ}, e.starred, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM tasks t WHERE t.email_id = e.id) AS task_count
		FROM emails e
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY e.received_at DESC
		LIMIT ? OFFSET ?`

	emails := []models.StoredEmail{}
	if err := s.db.SelectContext(ctx, &emails, s.rebind(s.dialect.sql(query)), args...); err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}

// GetEmail returns one of the user's emails
func (s *SQLStore) GetEmail(ctx context.Context, userID, id string) (*models.StoredEmail, error) {
	query := s.rebind(s.dialect.sql(`SELECT ` + emailColumns + ` FROM emails WHERE id = ? AND user_id = ?`))

	var email models.StoredEmail
	if err := s.db.GetContext(ctx, &email, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

// UpdateEmailFlags sets the read and/or starred flags; nil leaves a flag unchanged
func (s *SQLStore) UpdateEmailFlags(ctx context.Context, userID, id string, read, starred *bool) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{now()}
	if read != nil {
		sets = append(sets, "{READ} = ?")
		args = append(args, *read)
	}
	if starred != nil {
		sets = append(sets, "starred = ?")
		args = append(args, *starred)
	}
	args = append(args, id, userID)

	query := s.rebind(s.dialect.sql("UPDATE emails SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	return s.checkUpdated(ctx, res, "emails", userID, id)
}

// DeleteEmail removes the email and its tasks
func (s *SQLStore) DeleteEmail(ctx context.Context, userID, id string) error {
	var deleted int64
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// Explicit so the cascade also holds where foreign keys are not enforced
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM tasks WHERE email_id = ? AND user_id = ?"), id, userID); err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM emails WHERE id = ? AND user_id = ?"), id, userID)
		if err != nil {
			return fmt.Errorf("failed to delete email: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// CountEmailsReceived counts the user's emails received in [from, to)
func (s *SQLStore) CountEmailsReceived(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	query := s.rebind("SELECT COUNT(*) FROM emails WHERE user_id = ? AND received_at >= ? AND received_at < ?")
	if err := s.db.GetContext(ctx, &n, query, userID, from.UTC(), to.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return n, nil
}

// checkUpdated maps a zero-row UPDATE to ErrNotFound. MySQL reports zero
// affected rows when values did not change, so existence is confirmed first.
func (s *SQLStore) checkUpdated(ctx context.Context, res sql.Result, table, userID, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}
	ok, err := s.exists(ctx, table, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
