package handlers

import (
	"context"
	"net/http"

	"mailtriage/internal/models"
	"mailtriage/internal/search"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Dashboard computes per-user counters
type Dashboard interface {
	Dashboard(ctx context.Context, userID string) (models.DashboardStats, error)
}

// Searcher runs semantic queries over indexed emails
type Searcher interface {
	Search(ctx context.Context, userID, query string, limit int) ([]models.EmailSearchResult, error)
}

// StatsHandler returns dashboard counters
// @Summary Dashboard statistics
// @Tags stats
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} models.StatsResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/stats [get]
func StatsHandler(dashboard Dashboard, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		stats, err := dashboard.Dashboard(c.Request().Context(), userID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute stats")
			return errorJSON(c, http.StatusInternalServerError, "Failed to compute statistics")
		}
		return c.JSON(http.StatusOK, models.StatsResponse{Success: true, Stats: stats})
	}
}

// SearchHandler finds the emails closest in meaning to q
// @Summary Semantic email search
// @Tags search
// @Produce json
// @Param user_id path string true "User ID"
// @Param q query string true "Search text"
// @Param limit query int false "Max results (default 10, max 50)"
// @Success 200 {object} models.SearchResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/search [get]
func SearchHandler(searcher Searcher, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if searcher == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "Search is not configured")
		}

		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}
		q := c.QueryParam("q")
		if q == "" {
			return errorJSON(c, http.StatusBadRequest, "q is required")
		}
		limit, err := queryInt(c, "limit")
		if err != nil || limit > search.MaxLimit {
			limit = search.DefaultLimit
		}

		results, err := searcher.Search(c.Request().Context(), userID, q, limit)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Search failed")
			return errorJSON(c, http.StatusBadGateway, "Search failed")
		}
		return c.JSON(http.StatusOK, models.SearchResponse{Success: true, Results: results})
	}
}
