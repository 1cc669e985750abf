// Package store persists emails, tasks, settings and sync history in any of
// the SQL databases supported by internal/database.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/database"
	"mailtriage/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a row scoped to a user does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the pipeline and the HTTP handlers
type Store interface {
	EmailExists(ctx context.Context, userID, externalID string) (bool, error)
	InsertEmail(ctx context.Context, email *models.StoredEmail) (bool, error)
	InsertTask(ctx context.Context, task *models.StoredTask) error

	GetEmailSettings(ctx context.Context, userID string) (*models.EmailSettings, error)
	SaveEmailSettings(ctx context.Context, settings *models.EmailSettings) error
	GetAISettings(ctx context.Context, userID string) (models.AISettings, error)
	SaveAISettings(ctx context.Context, settings *models.AISettings) error

	ListEmails(ctx context.Context, filter EmailFilter) ([]models.StoredEmail, error)
	GetEmail(ctx context.Context, userID, id string) (*models.StoredEmail, error)
	UpdateEmailFlags(ctx context.Context, userID, id string, read, starred *bool) error
	DeleteEmail(ctx context.Context, userID, id string) error

	ListTasks(ctx context.Context, filter TaskFilter) ([]models.StoredTask, error)
	GetTask(ctx context.Context, userID, id string) (*models.StoredTask, error)
	UpdateTask(ctx context.Context, task *models.StoredTask) error

	RecordSyncRun(ctx context.Context, run *models.SyncRun) error
	ListSyncRuns(ctx context.Context, userID string, limit int) ([]models.SyncRun, error)
	CountEmailsReceived(ctx context.Context, userID string, from, to time.Time) (int, error)
	CountTasks(ctx context.Context, filter TaskCountFilter) (int, error)
}

// EmailFilter narrows ListEmails
type EmailFilter struct {
	UserID  string
	Query   string // Case-insensitive match on subject, sender or body
	Unread  *bool
	Starred *bool
	Limit   int
	Offset  int
}

// TaskFilter narrows ListTasks
type TaskFilter struct {
	UserID    string
	Completed *bool
	EmailID   string
	DueFrom   *time.Time
	DueTo     *time.Time
}

// TaskCountFilter narrows CountTasks
type TaskCountFilter struct {
	UserID        string
	Completed     *bool
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
}

// SQLStore implements Store on top of sqlx
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

// New wraps an open connection and applies pending migrations.
// driver is one of the database.Driver* constants.
func New(ctx context.Context, db *sqlx.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Open connects to databaseURL and returns a migrated store
func Open(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := database.New(databaseURL)
	if err != nil {
		return nil, err
	}

	driver, _ := database.DetectDriver(databaseURL)
	s, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection for health checks
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Close closes the underlying connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) rebind(query string) string {
	return sqlx.Rebind(s.dialect.bindType, query)
}

// now is truncated so values round-trip identically through every driver
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// exists reports whether a row with the given id belongs to the user
func (s *SQLStore) exists(ctx context.Context, table, userID, id string) (bool, error) {
	var n int
	query := s.rebind("SELECT COUNT(*) FROM " + table + " WHERE id = ? AND user_id = ?")
	if err := s.db.GetContext(ctx, &n, query, id, userID); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return n > 0, nil
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}
