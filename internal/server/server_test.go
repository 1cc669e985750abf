package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mailtriage/internal/analytics"
	"mailtriage/internal/analyzer"
	"mailtriage/internal/config"
	"mailtriage/internal/mailsource"
	"mailtriage/internal/models"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/store"
	"mailtriage/internal/syncer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleMailbox struct{}

func (sampleMailbox) FetchBatch(ctx context.Context, limit int) ([]models.RawMessage, error) {
	return mailsource.NewSampleSource().FetchBatch(ctx, limit)
}

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()

	s, err := store.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{Version: "test", APIToken: token, SyncTimeout: 60}
	stats := analytics.NewService(s, zerolog.Nop())
	p := pipeline.New(s, analyzer.NewMock(), pipeline.WithWorkers(2))
	sync := syncer.New(s, p, syncer.Options{
		Recorder: stats,
		SourceFactory: func(models.EmailSettings, mailsource.Options) (mailsource.Source, error) {
			return sampleMailbox{}, nil
		},
		Logger: zerolog.Nop(),
	})

	srv := New(cfg, Deps{Store: s, Syncer: sync, Analytics: stats}, zerolog.Nop())
	srv.Initialize()
	return srv
}

func do(t *testing.T, srv *Server, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Auth(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/users/user-1/emails", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/users/user-1/emails", "", "s3cret").Code)
}

func TestRoutes_SyncFlow(t *testing.T) {
	srv := newTestServer(t, "")

	rec := do(t, srv, http.MethodPost, "/api/users/user-1/sync", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	settings := `{"protocol":"imap","server":"imap.example.com","username":"jane@example.com","password":"pw"}`
	rec = do(t, srv, http.MethodPut, "/api/users/user-1/settings/email", settings, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/users/user-1/sync", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var first models.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.ProcessedEmails)
	assert.False(t, first.UsedFallback)

	// Same mailbox again: nothing new is stored
	rec = do(t, srv, http.MethodPost, "/api/users/user-1/sync", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second models.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Zero(t, second.ProcessedEmails)
	assert.Equal(t, 2, second.Skipped)

	rec = do(t, srv, http.MethodGet, "/api/users/user-1/emails", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var emails models.EmailListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &emails))
	assert.Equal(t, 2, emails.Count)

	rec = do(t, srv, http.MethodGet, "/api/users/user-1/tasks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks models.TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Equal(t, 4, tasks.Count)

	rec = do(t, srv, http.MethodGet, "/api/users/user-1/sync/runs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs models.SyncRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	// The run without settings never started and is not recorded
	assert.Len(t, runs.Runs, 2)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/users/user-1/sync/last", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/users/user-1/search?q=meeting", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/users/user-1/sync/jobs", "", "").Code)
}
