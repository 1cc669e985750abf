package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mailtriage/internal/cache"
	"mailtriage/internal/config"
	"mailtriage/internal/mailsource"
	"mailtriage/internal/models"
	"mailtriage/internal/syncer"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SyncRunner runs one mailbox sync
type SyncRunner interface {
	Sync(ctx context.Context, userID string, sampleFallback bool) (models.SyncResult, error)
}

// SyncHistory lists recorded runs
type SyncHistory interface {
	History(ctx context.Context, userID string, limit int) ([]models.SyncRun, error)
}

// SyncHandler fetches, analyzes and stores the newest messages of a user
// @Summary Sync mailbox
// @Description Fetches the most recent messages, summarizes them and extracts tasks. With fallback=sample, labeled sample data replaces an unreachable mailbox when the server allows it.
// @Tags sync
// @Produce json
// @Param user_id path string true "User ID"
// @Param fallback query string false "Set to sample to opt into sample data"
// @Success 200 {object} models.SyncResponse
// @Failure 400 {object} models.SyncResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.SyncResponse
// @Failure 500 {object} models.SyncResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/sync [post]
func SyncHandler(runner SyncRunner, tracker *cache.SyncTracker, cfg *config.Config, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		sampleFallback := false
		switch c.QueryParam("fallback") {
		case "":
		case "sample":
			if !cfg.AllowSampleFallback {
				return errorJSON(c, http.StatusBadRequest, "Sample fallback is disabled on this server")
			}
			sampleFallback = true
		default:
			return errorJSON(c, http.StatusBadRequest, "fallback must be \"sample\" when set")
		}

		if !tracker.Begin(userID) {
			return errorJSON(c, http.StatusConflict, "A sync is already running for this user")
		}
		// Release the lock on every exit, panics included
		finished := false
		defer func() {
			if !finished {
				tracker.Abort(userID)
			}
		}()

		// The run outlives a dropped client connection
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()),
			time.Duration(cfg.SyncTimeout)*time.Second)
		defer cancel()

		result, err := runner.Sync(ctx, userID, sampleFallback)
		if err != nil {
			status := syncErrorStatus(err)
			logger.Warn().Err(err).Str("user_id", userID).Int("status", status).Msg("Sync failed")
			return c.JSON(status, models.SyncResponse{
				Success: false,
				Results: []models.MessageResult{},
				Error:   err.Error(),
			})
		}

		tracker.Finish(userID, result)
		finished = true
		return c.JSON(http.StatusOK, models.NewSyncResponse(result))
	}
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, syncer.ErrNoSettings), mailsource.IsProtocolError(err):
		return http.StatusBadRequest
	case mailsource.IsConnectionLevel(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// LastSyncHandler returns the outcome of the latest sync started through the API
// @Summary Last sync result
// @Tags sync
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} models.SyncResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/sync/last [get]
func LastSyncHandler(tracker *cache.SyncTracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		if since, running := tracker.Running(userID); running {
			return c.JSON(http.StatusAccepted, map[string]interface{}{
				"success":    true,
				"running":    true,
				"started_at": since,
			})
		}

		result, ok := tracker.Last(userID)
		if !ok {
			return errorJSON(c, http.StatusNotFound, "No recent sync")
		}
		return c.JSON(http.StatusOK, models.NewSyncResponse(result))
	}
}

// SyncRunsHandler lists recorded sync runs, newest first
// @Summary Sync history
// @Tags sync
// @Produce json
// @Param user_id path string true "User ID"
// @Param limit query int false "Max runs (default 20, max 100)"
// @Success 200 {object} models.SyncRunsResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/sync/runs [get]
func SyncRunsHandler(history SyncHistory) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "limit must be a number")
		}

		runs, err := history.History(c.Request().Context(), userID, limit)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to load sync history")
		}
		return c.JSON(http.StatusOK, models.SyncRunsResponse{Success: true, Runs: runs})
	}
}
