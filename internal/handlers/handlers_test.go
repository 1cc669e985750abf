package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// newContext builds an echo context for target. params alternates names and values.
func newContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedEmail stores an email with one task per priority given
func seedEmail(t *testing.T, s *store.SQLStore, userID, externalID, subject string, priorities ...models.Priority) models.StoredEmail {
	t.Helper()
	ctx := context.Background()
	summary := "Summary of " + subject
	email := models.StoredEmail{
		UserID:      userID,
		EmailID:     externalID,
		Subject:     subject,
		SenderName:  "John Smith",
		SenderEmail: "john.smith@example.com",
		ReceivedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Body:        "Please review the " + subject,
		Summary:     &summary,
	}
	inserted, err := s.InsertEmail(ctx, &email)
	require.NoError(t, err)
	require.True(t, inserted)

	for _, p := range priorities {
		require.NoError(t, s.InsertTask(ctx, &models.StoredTask{
			UserID:      userID,
			EmailID:     email.ID,
			Description: "Follow up on " + subject,
			Priority:    p,
		}))
	}
	return email
}
