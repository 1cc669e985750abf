package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mailtriage/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles basic health check requests
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
		})
	}
}

// dbProbeTimeout bounds one readiness probe
var dbProbeTimeout = 5 * time.Second

var errNoDatabase = errors.New("database not configured")

// DBHealthHandler reports whether the store answers a read-only query
// @Summary Database readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} models.DBHealthResponse
// @Failure 503 {object} models.DBHealthResponse
// @Router /healthz/db [get]
func DBHealthHandler(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.JSON(http.StatusServiceUnavailable, unhealthyDB(errNoDatabase, 0))
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), dbProbeTimeout)
		defer cancel()

		start := time.Now()
		if err := probeDB(ctx, db); err != nil {
			return c.JSON(http.StatusServiceUnavailable, unhealthyDB(err, time.Since(start)))
		}
		return c.JSON(http.StatusOK, models.DBHealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Connected: true,
			Latency:   time.Since(start),
		})
	}
}

func unhealthyDB(err error, latency time.Duration) models.DBHealthResponse {
	return models.DBHealthResponse{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Latency:   latency,
		Error:     err.Error(),
	}
}

// probeDB runs SELECT 1 in a read-only transaction that is always rolled back,
// so a probe never holds locks or writes
func probeDB(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("probe query: %w", err)
	}
	return nil
}

// RootHandler handles requests to the API root
func RootHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Mailtriage API",
			"version": version,
			"status":  "running",
		})
	}
}
