package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"mailtriage/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func expectProbe(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()
}

func TestHealthHandler(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "")
	require.NoError(t, HealthHandler("2.3.1")(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "2.3.1", resp.Version)
	assert.WithinDuration(t, time.Now().UTC(), resp.Timestamp, 5*time.Second)
}

func TestDBHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		expect   func(mock sqlmock.Sqlmock)
		nilDB    bool
		status   int
		errorMsg string
	}{
		{
			name:   "healthy",
			expect: expectProbe,
			status: http.StatusOK,
		},
		{
			name:     "no database",
			nilDB:    true,
			status:   http.StatusServiceUnavailable,
			errorMsg: "database not configured",
		},
		{
			name: "begin fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
			},
			status:   http.StatusServiceUnavailable,
			errorMsg: "begin read-only transaction",
		},
		{
			name: "query fails and still rolls back",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			status:   http.StatusServiceUnavailable,
			errorMsg: "probe query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var db *sqlx.DB
			var mock sqlmock.Sqlmock
			if !tt.nilDB {
				db, mock = newMockDB(t)
				tt.expect(mock)
			}

			c, rec := newContext(http.MethodGet, "/healthz/db", "")
			require.NoError(t, DBHealthHandler(db)(c))
			assert.Equal(t, tt.status, rec.Code)

			resp := decode[models.DBHealthResponse](t, rec)
			if tt.errorMsg == "" {
				assert.Equal(t, "healthy", resp.Status)
				assert.True(t, resp.Connected)
				assert.Empty(t, resp.Error)
			} else {
				assert.Equal(t, "unhealthy", resp.Status)
				assert.False(t, resp.Connected)
				assert.Contains(t, resp.Error, tt.errorMsg)
			}

			if mock != nil {
				assert.NoError(t, mock.ExpectationsWereMet())
			}
		})
	}
}

func TestDBHealthHandler_ProbeTimeout(t *testing.T) {
	old := dbProbeTimeout
	dbProbeTimeout = 50 * time.Millisecond
	t.Cleanup(func() { dbProbeTimeout = old })

	db, mock := newMockDB(t)
	mock.ExpectBegin().WillDelayFor(time.Second)

	c, rec := newContext(http.MethodGet, "/healthz/db", "")
	require.NoError(t, DBHealthHandler(db)(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[models.DBHealthResponse](t, rec)
	assert.Contains(t, resp.Error, "begin read-only transaction")
}

func TestDBHealthHandler_SQLite(t *testing.T) {
	s := newTestStore(t)
	handler := DBHealthHandler(s.DB())

	// The probe leaves no transaction open behind it
	for i := 0; i < 3; i++ {
		c, rec := newContext(http.MethodGet, "/healthz/db", "")
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code, "probe %d", i+1)
	}
}

func TestRootHandler(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/", "")
	require.NoError(t, RootHandler("2.3.1")(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, map[string]string{
		"service": "Mailtriage API",
		"version": "2.3.1",
		"status":  "running",
	}, resp)
}
