// Package notify emails users a digest of newly extracted high-priority tasks.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SettingsReader resolves the mailbox a user syncs from
type SettingsReader interface {
	GetEmailSettings(ctx context.Context, userID string) (*models.EmailSettings, error)
}

// Notifier sends task digests through SendGrid
type Notifier struct {
	client   *sendgrid.Client
	from     string
	settings SettingsReader
	logger   zerolog.Logger
}

// New creates a notifier. The recipient is the mailbox username of the user
// when it is an email address.
func New(apiKey, from string, settings SettingsReader, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		settings: settings,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// NotifyTasks sends one message listing the high-priority tasks of email.
// Nothing is sent when there are none.
func (n *Notifier) NotifyTasks(ctx context.Context, userID string, email models.StoredEmail, tasks []models.StoredTask) error {
	var urgent []models.StoredTask
	for _, t := range tasks {
		if t.Priority == models.PriorityHigh {
			urgent = append(urgent, t)
		}
	}
	if len(urgent) == 0 {
		return nil
	}

	to, err := n.recipient(ctx, userID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%d high-priority task(s) from \"%s\"", len(urgent), email.Subject)
	text, htmlBody := digestBody(email, urgent)
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail("Mail Triage", n.from),
		subject,
		sgmail.NewEmail("", to),
		text,
		htmlBody,
	)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	n.logger.Info().Str("user_id", userID).Int("tasks", len(urgent)).Msg("Sent task digest")
	return nil
}

func (n *Notifier) recipient(ctx context.Context, userID string) (string, error) {
	settings, err := n.settings.GetEmailSettings(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load recipient: %w", err)
	}
	addr, err := mail.ParseAddress(settings.Username)
	if err != nil {
		return "", fmt.Errorf("mailbox username %q is not an email address", settings.Username)
	}
	return addr.Address, nil
}

func digestBody(email models.StoredEmail, tasks []models.StoredTask) (string, string) {
	var text, body strings.Builder

	fmt.Fprintf(&text, "New high-priority tasks from %s <%s>:\n\n", email.SenderName, email.SenderEmail)
	fmt.Fprintf(&body, "<p>New high-priority tasks from %s &lt;%s&gt;:</p><ul>", html.EscapeString(email.SenderName), html.EscapeString(email.SenderEmail))

	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = " (due " + t.DueDate.Format("2006-01-02") + ")"
		}
		fmt.Fprintf(&text, "- %s%s\n", t.Description, due)
		fmt.Fprintf(&body, "<li>%s%s</li>", html.EscapeString(t.Description), due)
	}
	body.WriteString("</ul>")

	if email.Summary != nil {
		fmt.Fprintf(&text, "\nSummary: %s\n", *email.Summary)
		fmt.Fprintf(&body, "<p>Summary: %s</p>", html.EscapeString(*email.Summary))
	}

	return text.String(), body.String()
}
