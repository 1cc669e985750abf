package store

import (
	"context"
	"fmt"
	"strings"

	"mailtriage/internal/database"

	"github.com/jmoiron/sqlx"
)

// dialect captures the SQL differences between the supported databases
type dialect struct {
	name     string
	bindType int
	types    *strings.Replacer
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case database.DriverPostgres:
		return dialect{
			name:     driver,
			bindType: sqlx.DOLLAR,
			types:    strings.NewReplacer("{TS}", "TIMESTAMPTZ", "{LONGTEXT}", "TEXT", "{READ}", `"read"`),
		}, nil
	case database.DriverMySQL:
		return dialect{
			name:     driver,
			bindType: sqlx.QUESTION,
			types:    strings.NewReplacer("{TS}", "DATETIME(6)", "{LONGTEXT}", "LONGTEXT", "{READ}", "`read`"),
		}, nil
	case database.DriverSQLite:
		return dialect{
			name:     driver,
			bindType: sqlx.QUESTION,
			types:    strings.NewReplacer("{TS}", "TIMESTAMP", "{LONGTEXT}", "TEXT", "{READ}", `"read"`),
		}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// sql expands the {TS}, {LONGTEXT} and {READ} placeholders
func (d dialect) sql(query string) string {
	return d.types.Replace(query)
}

// insertIgnore turns an INSERT into one that silently skips rows violating conflictCols
func (d dialect) insertIgnore(insert string, conflictCols ...string) string {
	if d.name == database.DriverMySQL {
		// Affected rows is 0 when the existing row is left unchanged
		return insert + " ON DUPLICATE KEY UPDATE id = id"
	}
	return insert + " ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO NOTHING"
}

// upsert turns an INSERT into one that overwrites updateCols on conflict
func (d dialect) upsert(insert string, conflictCols []string, updateCols []string) string {
	sets := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		if d.name == database.DriverMySQL {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	if d.name == database.DriverMySQL {
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return insert + " ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS email_settings (
				user_id VARCHAR(191) PRIMARY KEY,
				protocol VARCHAR(16) NOT NULL,
				server VARCHAR(255) NOT NULL,
				port INTEGER NOT NULL,
				username VARCHAR(255) NOT NULL,
				password TEXT NOT NULL,
				use_ssl BOOLEAN NOT NULL,
				fetch_frequency VARCHAR(8) NOT NULL,
				updated_at {TS} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ai_settings (
				user_id VARCHAR(191) PRIMARY KEY,
				process_email_body BOOLEAN NOT NULL,
				extract_action_items BOOLEAN NOT NULL,
				mark_email_as_read BOOLEAN NOT NULL,
				updated_at {TS} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS emails (
				id VARCHAR(36) PRIMARY KEY,
				user_id VARCHAR(191) NOT NULL,
				email_id VARCHAR(255) NOT NULL,
				subject TEXT NOT NULL,
				sender_name VARCHAR(255) NOT NULL,
				sender_email VARCHAR(320) NOT NULL,
				received_at {TS} NOT NULL,
				body {LONGTEXT} NOT NULL,
				summary TEXT NULL,
				{READ} BOOLEAN NOT NULL,
				starred BOOLEAN NOT NULL,
				created_at {TS} NOT NULL,
				updated_at {TS} NOT NULL,
				CONSTRAINT uq_emails_user_email UNIQUE (user_id, email_id)
			)`,
			`CREATE INDEX idx_emails_user_received ON emails (user_id, received_at)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id VARCHAR(36) PRIMARY KEY,
				user_id VARCHAR(191) NOT NULL,
				email_id VARCHAR(36) NOT NULL,
				description TEXT NOT NULL,
				priority VARCHAR(8) NOT NULL,
				completed BOOLEAN NOT NULL,
				due_date {TS} NULL,
				created_at {TS} NOT NULL,
				updated_at {TS} NOT NULL,
				CONSTRAINT fk_tasks_email FOREIGN KEY (email_id) REFERENCES emails (id) ON DELETE CASCADE
			)`,
			`CREATE INDEX idx_tasks_user_completed ON tasks (user_id, completed)`,
			`CREATE INDEX idx_tasks_email ON tasks (email_id)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sync_runs (
				id VARCHAR(36) PRIMARY KEY,
				user_id VARCHAR(191) NOT NULL,
				processed INTEGER NOT NULL,
				skipped INTEGER NOT NULL,
				failed INTEGER NOT NULL,
				partial INTEGER NOT NULL,
				used_fallback BOOLEAN NOT NULL,
				cancelled BOOLEAN NOT NULL,
				error TEXT NULL,
				started_at {TS} NOT NULL,
				finished_at {TS} NOT NULL
			)`,
			`CREATE INDEX idx_sync_runs_user_started ON sync_runs (user_id, started_at)`,
		},
	},
}

// migrate applies every migration newer than the recorded schema version
func (s *SQLStore) migrate(ctx context.Context) error {
	createVersions := s.dialect.sql(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at {TS} NOT NULL
	)`)
	if _, err := s.db.ExecContext(ctx, createVersions); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := s.db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, s.dialect.sql(stmt)); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				s.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
				m.version, now())
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}
