package models

import (
	"strings"
	"time"
)

// Priority is the urgency assigned to an extracted task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps free-form input to a Priority, defaulting to medium
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ExtractedTask is a task produced by the analyzer
type ExtractedTask struct {
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// AnalysisResult is the analyzer output for one message
type AnalysisResult struct {
	Summary string          `json:"summary"`
	Tasks   []ExtractedTask `json:"tasks"`
}

// StoredTask represents a persisted task linked to its email
// @Description Task extracted from an email
type StoredTask struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	EmailID     string     `db:"email_id" json:"email_id"`
	Description string     `db:"description" json:"description" example:"Follow up with John Smith"`
	Priority    Priority   `db:"priority" json:"priority" example:"high"`
	Completed   bool       `db:"completed" json:"completed" example:"false"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
