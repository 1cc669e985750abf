package models

import "time"

// RawMessage is an unparsed message as retrieved from a mail source
type RawMessage struct {
	Ref  uint32 // Mailbox UID, 0 when the source has none
	Data []byte
}

// NormalizedMessage is the parser output consumed by the analyzer and the pipeline
type NormalizedMessage struct {
	ExternalID  string    `json:"external_id"`
	Subject     string    `json:"subject"`
	SenderName  string    `json:"sender_name"`
	SenderEmail string    `json:"sender_email"`
	ReceivedAt  time.Time `json:"received_at"`
	Body        string    `json:"body"`
}

// StoredEmail represents an ingested email
// @Description Ingested email with its AI summary
type StoredEmail struct {
	ID          string    `db:"id" json:"id" example:"5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f"`
	UserID      string    `db:"user_id" json:"user_id" example:"user-1"`
	EmailID     string    `db:"email_id" json:"email_id" example:"CAH1234@mail.example.com"` // Mailbox external id
	Subject     string    `db:"subject" json:"subject" example:"Important Project Update"`
	SenderName  string    `db:"sender_name" json:"sender_name" example:"John Smith"`
	SenderEmail string    `db:"sender_email" json:"sender_email" example:"john.smith@example.com"`
	ReceivedAt  time.Time `db:"received_at" json:"received_at"`
	Body        string    `db:"body" json:"body"`
	Summary     *string   `db:"summary" json:"summary"` // nil when analysis failed or was skipped
	Read        bool      `db:"read" json:"read"`
	Starred     bool      `db:"starred" json:"starred"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	TaskCount   int       `db:"task_count" json:"task_count"` // Only populated by list queries
}

// EmailSearchResult represents an email with similarity score
type EmailSearchResult struct {
	EmailID    string  `json:"email_id"`
	Subject    string  `json:"subject"`
	SenderName string  `json:"sender_name"`
	Summary    string  `json:"summary,omitempty"`
	Similarity float32 `json:"similarity"`
}

// EmailSettings are the mailbox credentials for a user
// @Description Mailbox connection settings
type EmailSettings struct {
	UserID         string    `db:"user_id" json:"user_id"`
	Protocol       string    `db:"protocol" json:"protocol" example:"imap"`     // imap or pop3
	Server         string    `db:"server" json:"server" example:"imap.gmail.com"`
	Port           int       `db:"port" json:"port" example:"993"`
	Username       string    `db:"username" json:"username"`
	Password       string    `db:"password" json:"password,omitempty"`
	UseSSL         bool      `db:"use_ssl" json:"use_ssl" example:"true"`
	FetchFrequency string    `db:"fetch_frequency" json:"fetch_frequency" example:"12h"` // 6h, 12h or 24h
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Fetch frequencies accepted in settings
var FetchFrequencies = map[string]bool{"6h": true, "12h": true, "24h": true}

// AISettings control how the analyzer output is applied
// @Description AI processing settings
type AISettings struct {
	UserID             string    `db:"user_id" json:"user_id"`
	ProcessEmailBody   bool      `db:"process_email_body" json:"process_email_body" example:"true"`
	ExtractActionItems bool      `db:"extract_action_items" json:"extract_action_items" example:"true"`
	MarkEmailAsRead    bool      `db:"mark_email_as_read" json:"mark_email_as_read" example:"false"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultAISettings returns the settings used when a user has saved none
func DefaultAISettings(userID string) AISettings {
	return AISettings{
		UserID:             userID,
		ProcessEmailBody:   true,
		ExtractActionItems: true,
		MarkEmailAsRead:    false,
	}
}
