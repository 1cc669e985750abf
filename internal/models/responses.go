package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// ErrorResponse is returned by every endpoint on failure
// @Description Error payload
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"email settings not configured"`
}

// SyncResponse is returned by the sync endpoint
// @Description Sync run outcome
type SyncResponse struct {
	Success         bool            `json:"success" example:"true"`         // False only when the run could not start or aborted
	ProcessedEmails int             `json:"processedEmails" example:"2"`    // Emails stored (fully or partially)
	Skipped         int             `json:"skipped" example:"0"`            // Duplicates
	Failed          int             `json:"failed" example:"0"`             // Messages that could not be stored
	Partial         int             `json:"partial" example:"0"`            // Stored without summary or with missing tasks
	UsedFallback    bool            `json:"usedFallback" example:"false"`   // Sample data was used instead of the mailbox
	Cancelled       bool            `json:"cancelled" example:"false"`      // Run stopped before all messages were handled
	Results         []MessageResult `json:"results"`                        // Per-message outcome in fetch order
	Error           string          `json:"error,omitempty" example:""`     // Error message if the run failed
	Message         string          `json:"message,omitempty" example:"ok"` // Human readable outcome
}

// NewSyncResponse builds the API payload for a finished run
func NewSyncResponse(r SyncResult) SyncResponse {
	resp := SyncResponse{
		Success:         true,
		ProcessedEmails: r.Processed,
		Skipped:         r.Skipped,
		Failed:          r.Failed,
		Partial:         r.Partial,
		UsedFallback:    r.UsedFallback,
		Cancelled:       r.Cancelled,
		Results:         r.Results,
	}
	if resp.Results == nil {
		resp.Results = []MessageResult{}
	}

	switch {
	case r.UsedFallback:
		resp.Message = "Mailbox unavailable: sample data was used"
	case r.Cancelled:
		resp.Message = "Sync cancelled before completion"
	case r.Failed > 0 || r.Partial > 0:
		resp.Message = "Sync completed with errors"
	default:
		resp.Message = "Sync completed"
	}
	return resp
}

// EmailListResponse wraps a page of emails
type EmailListResponse struct {
	Success bool          `json:"success" example:"true"`
	Emails  []StoredEmail `json:"emails"`
	Count   int           `json:"count" example:"2"`
}

// EmailDetailResponse wraps one email and its tasks
type EmailDetailResponse struct {
	Success bool         `json:"success" example:"true"`
	Email   StoredEmail  `json:"email"`
	Tasks   []StoredTask `json:"tasks"`
}

// UpdateEmailRequest toggles user flags on an email
type UpdateEmailRequest struct {
	Read    *bool `json:"read,omitempty"`
	Starred *bool `json:"starred,omitempty"`
}

// TaskListResponse wraps a list of tasks
type TaskListResponse struct {
	Success bool         `json:"success" example:"true"`
	Tasks   []StoredTask `json:"tasks"`
	Count   int          `json:"count" example:"2"`
}

// UpdateTaskRequest changes the mutable fields of a task
type UpdateTaskRequest struct {
	Completed    *bool      `json:"completed,omitempty"`
	Priority     *string    `json:"priority,omitempty" example:"high"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

// ConnectionTestResponse reports a mailbox connection check
type ConnectionTestResponse struct {
	Success  bool   `json:"success" example:"true"`
	Message  string `json:"message" example:"Successfully connected to imap.gmail.com using IMAP."`
	Messages uint32 `json:"messages,omitempty" example:"42"`
}

// SearchResponse wraps semantic search hits
type SearchResponse struct {
	Success bool                `json:"success" example:"true"`
	Results []EmailSearchResult `json:"results"`
}

// SyncRunsResponse wraps sync history
type SyncRunsResponse struct {
	Success bool      `json:"success" example:"true"`
	Runs    []SyncRun `json:"runs"`
}

// StatsResponse wraps dashboard statistics
type StatsResponse struct {
	Success bool           `json:"success" example:"true"`
	Stats   DashboardStats `json:"stats"`
}
