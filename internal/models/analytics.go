package models

import "time"

// MessageStatus is the terminal state of one message in a sync run
type MessageStatus string

const (
	StatusSuccess   MessageStatus = "success"
	StatusDuplicate MessageStatus = "duplicate"
	StatusPartial   MessageStatus = "partial"
	StatusFailed    MessageStatus = "failed"
)

// MessageResult records what happened to one fetched message
type MessageResult struct {
	Status       MessageStatus `json:"status" example:"success"`
	ExternalID   string        `json:"external_id,omitempty"`
	Subject      string        `json:"subject,omitempty"`
	EmailID      string        `json:"email_id,omitempty"` // Stored email id when persisted
	TasksCreated int           `json:"tasks_created"`
	Error        string        `json:"error,omitempty"`
}

// SyncResult summarizes a sync run
type SyncResult struct {
	UserID       string          `json:"user_id"`
	Processed    int             `json:"processed"` // success + partial
	Skipped      int             `json:"skipped"`   // duplicates
	Failed       int             `json:"failed"`
	Partial      int             `json:"partial"`
	UsedFallback bool            `json:"used_fallback"`
	Cancelled    bool            `json:"cancelled"`
	Results      []MessageResult `json:"results"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// Degraded reports whether the run finished with anything short of full success
func (r SyncResult) Degraded() bool {
	return r.UsedFallback || r.Cancelled || r.Failed > 0 || r.Partial > 0
}

// SyncRun is a persisted sync history entry
type SyncRun struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Processed    int       `db:"processed" json:"processed"`
	Skipped      int       `db:"skipped" json:"skipped"`
	Failed       int       `db:"failed" json:"failed"`
	Partial      int       `db:"partial" json:"partial"`
	UsedFallback bool      `db:"used_fallback" json:"used_fallback"`
	Cancelled    bool      `db:"cancelled" json:"cancelled"`
	Error        *string   `db:"error" json:"error,omitempty"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	FinishedAt   time.Time `db:"finished_at" json:"finished_at"`
}

// DashboardStats are the per-user counters shown on the dashboard
type DashboardStats struct {
	EmailsToday             int       `json:"emails_today"`
	EmailsYesterday         int       `json:"emails_yesterday"`
	PendingTasks            int       `json:"pending_tasks"`
	PendingTasksYesterday   int       `json:"pending_tasks_yesterday"`
	CompletedTasks          int       `json:"completed_tasks"`
	CompletedTasksYesterday int       `json:"completed_tasks_yesterday"`
	Efficiency              int       `json:"efficiency"`           // Completed / total tasks, percent
	EfficiencyLastWeek      int       `json:"efficiency_last_week"` // Same ratio for tasks older than a week
	LastSync                *SyncRun  `json:"last_sync,omitempty"`
	GeneratedAt             time.Time `json:"generated_at"`
}
