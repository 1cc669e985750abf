package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mailtriage/internal/models"

	"github.com/google/uuid"
)

const taskColumns = `id, user_id, email_id, description, priority, completed, due_date, created_at, updated_at`

// InsertTask stores a task for an existing email
func (s *SQLStore) InsertTask(ctx context.Context, task *models.StoredTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if !task.Priority.Valid() {
		task.Priority = models.PriorityMedium
	}
	ts := now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = ts
	}
	task.UpdatedAt = ts

	query := s.rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.EmailID, task.Description, string(task.Priority),
		task.Completed, utcPtr(task.DueDate), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task for email %s: %w", task.EmailID, err)
	}
	return nil
}

// ListTasks returns the user's tasks ordered by due date, then creation
func (s *SQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.StoredTask, error) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if filter.Completed != nil {
		conditions = append(conditions, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.EmailID != "" {
		conditions = append(conditions, "email_id = ?")
		args = append(args, filter.EmailID)
	}
	if filter.DueFrom != nil {
		conditions = append(conditions, "due_date >= ?")
		args = append(args, filter.DueFrom.UTC())
	}
	if filter.DueTo != nil {
		conditions = append(conditions, "due_date < ?")
		args = append(args, filter.DueTo.UTC())
	}

	// NULL due dates sort last on every supported database
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date, created_at`

	tasks := []models.StoredTask{}
	if err := s.db.SelectContext(ctx, &tasks, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns one of the user's tasks
func (s *SQLStore) GetTask(ctx context.Context, userID, id string) (*models.StoredTask, error) {
	query := s.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`)

	var task models.StoredTask
	if err := s.db.GetContext(ctx, &task, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// UpdateTask writes the mutable fields of a task. Description and email link never change.
func (s *SQLStore) UpdateTask(ctx context.Context, task *models.StoredTask) error {
	if !task.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", task.Priority)
	}
	task.UpdatedAt = now()

	query := s.rebind(`UPDATE tasks SET completed = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		task.Completed, string(task.Priority), utcPtr(task.DueDate), task.UpdatedAt, task.ID, task.UserID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return s.checkUpdated(ctx, res, "tasks", task.UserID, task.ID)
}

// CountTasks counts the user's tasks matching the filter
func (s *SQLStore) CountTasks(ctx context.Context, filter TaskCountFilter) (int, error) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if filter.Completed != nil {
		conditions = append(conditions, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.CreatedBefore.UTC())
	}

	var n int
	query := s.rebind("SELECT COUNT(*) FROM tasks WHERE " + strings.Join(conditions, " AND "))
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}
