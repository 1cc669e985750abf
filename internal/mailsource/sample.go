package mailsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/models"
)

type sampleMessage struct {
	messageID string
	subject   string
	fromName  string
	fromAddr  string
	age       time.Duration
	body      string
}

var sampleMessages = []sampleMessage{
	{
		messageID: "sample-project-update@mailtriage.local",
		subject:   "Important Project Update",
		fromName:  "John Smith",
		fromAddr:  "john.smith@example.com",
		age:       time.Hour,
		body:      "Dear team, please find attached the latest project update. We need to discuss this at our next meeting.",
	},
	{
		messageID: "sample-meeting-reminder@mailtriage.local",
		subject:   "Meeting Reminder",
		fromName:  "Alice Johnson",
		fromAddr:  "alice.j@example.com",
		age:       2 * time.Hour,
		body:      "This is a reminder about our meeting tomorrow at 10:00 AM. Please prepare your progress reports.",
	},
}

// SampleSource serves a fixed pair of demo messages. It is only used when a
// caller explicitly opts into fallback data, and results built from it are
// labeled as such.
type SampleSource struct {
	now func() time.Time
}

// NewSampleSource creates a sample source stamped with the current time
func NewSampleSource() *SampleSource {
	return &SampleSource{now: time.Now}
}

// FetchBatch renders the sample messages as RFC 5322 bytes, newest first
func (s *SampleSource) FetchBatch(ctx context.Context, limit int) ([]models.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	messages := make([]models.RawMessage, 0, len(sampleMessages))
	for _, m := range sampleMessages {
		if limit > 0 && len(messages) >= limit {
			break
		}
		messages = append(messages, models.RawMessage{Data: m.render(now)})
	}
	return messages, nil
}

func (m sampleMessage) render(now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", m.messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Add(-m.age).UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.fromName, m.fromAddr)
	b.WriteString("To: you@example.com\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", m.subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
