package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsStub struct {
	settings *models.EmailSettings
	err      error
}

func (s settingsStub) GetEmailSettings(context.Context, string) (*models.EmailSettings, error) {
	return s.settings, s.err
}

type sendGridStub struct {
	requests []map[string]any
	status   int
}

func (s *sendGridStub) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)
	s.requests = append(s.requests, payload)
	w.WriteHeader(s.status)
}

func newTestNotifier(t *testing.T, stub *sendGridStub, settings SettingsReader) *Notifier {
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	n := New("SG.test", "noreply@mailtriage.local", settings, zerolog.Nop())
	n.client.BaseURL = srv.URL + "/v3/mail/send"
	return n
}

func testEmail() models.StoredEmail {
	summary := "Deadline moved to Friday."
	return models.StoredEmail{
		ID:          "email-1",
		Subject:     "Important Project Update",
		SenderName:  "John Smith",
		SenderEmail: "john.smith@example.com",
		Summary:     &summary,
	}
}

func TestNotifyTasks_SendsHighPriorityOnly(t *testing.T) {
	stub := &sendGridStub{status: http.StatusAccepted}
	n := newTestNotifier(t, stub, settingsStub{settings: &models.EmailSettings{Username: "jane@example.com"}})

	due := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	tasks := []models.StoredTask{
		{Description: "Review information", Priority: models.PriorityMedium},
		{Description: "Follow up with John Smith", Priority: models.PriorityHigh, DueDate: &due},
	}

	require.NoError(t, n.NotifyTasks(context.Background(), "user-1", testEmail(), tasks))
	require.Len(t, stub.requests, 1)

	req := stub.requests[0]
	assert.Equal(t, `1 high-priority task(s) from "Important Project Update"`, req["subject"])

	personalizations := req["personalizations"].([]any)
	to := personalizations[0].(map[string]any)["to"].([]any)
	assert.Equal(t, "jane@example.com", to[0].(map[string]any)["email"])

	content := req["content"].([]any)
	plain := content[0].(map[string]any)["value"].(string)
	assert.Contains(t, plain, "- Follow up with John Smith (due 2024-03-02)")
	assert.NotContains(t, plain, "Review information")
	assert.Contains(t, plain, "Summary: Deadline moved to Friday.")
}

func TestNotifyTasks_NothingUrgent(t *testing.T) {
	stub := &sendGridStub{status: http.StatusAccepted}
	n := newTestNotifier(t, stub, settingsStub{err: errors.New("must not be called")})

	err := n.NotifyTasks(context.Background(), "user-1", testEmail(), []models.StoredTask{
		{Description: "Read newsletter", Priority: models.PriorityLow},
	})
	require.NoError(t, err)
	assert.Empty(t, stub.requests)
}

func TestNotifyTasks_Errors(t *testing.T) {
	urgent := []models.StoredTask{{Description: "Reply today", Priority: models.PriorityHigh}}

	tests := []struct {
		name     string
		settings SettingsReader
		status   int
		wantErr  string
	}{
		{
			name:     "settings missing",
			settings: settingsStub{err: errors.New("not found")},
			status:   http.StatusAccepted,
			wantErr:  "failed to load recipient",
		},
		{
			name:     "username is not an address",
			settings: settingsStub{settings: &models.EmailSettings{Username: "jsmith"}},
			status:   http.StatusAccepted,
			wantErr:  "not an email address",
		},
		{
			name:     "api rejects",
			settings: settingsStub{settings: &models.EmailSettings{Username: "jane@example.com"}},
			status:   http.StatusUnauthorized,
			wantErr:  "status 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotifier(t, &sendGridStub{status: tt.status}, tt.settings)
			err := n.NotifyTasks(context.Background(), "user-1", testEmail(), urgent)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDigestBody_EscapesHTML(t *testing.T) {
	email := testEmail()
	email.SenderName = "<script>"
	_, body := digestBody(email, []models.StoredTask{{Description: "Check A & B", Priority: models.PriorityHigh}})

	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "<li>Check A &amp; B</li>")
}
