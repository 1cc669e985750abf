package handlers

import (
	"context"
	"net/http"
	"time"

	"mailtriage/internal/scheduler"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// JobScheduler starts and inspects sync Jobs in the cluster
type JobScheduler interface {
	TriggerSync(ctx context.Context, userID string) (string, error)
	GetJobStatus(ctx context.Context, userID, jobName string) (*scheduler.JobStatus, error)
}

// TriggerSyncJobResponse is returned when a sync Job is created
type TriggerSyncJobResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Sync job triggered successfully"`
	JobName string `json:"job_name,omitempty" example:"sync-user-1-0a1b2c3d-1700000000"`
	Error   string `json:"error,omitempty"`
}

// TriggerSyncJobHandler runs the sync of a user as a Kubernetes Job instead of in-process
// @Summary Trigger sync job
// @Description Creates a one-off Kubernetes Job that runs sync-user for this user
// @Tags sync
// @Produce json
// @Param user_id path string true "User ID"
// @Success 202 {object} TriggerSyncJobResponse
// @Failure 500 {object} TriggerSyncJobResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/sync/jobs [post]
func TriggerSyncJobHandler(jobs JobScheduler, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
		defer cancel()

		jobName, err := jobs.TriggerSync(ctx, userID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create sync job")
			return c.JSON(http.StatusInternalServerError, TriggerSyncJobResponse{
				Success: false,
				Error:   "Failed to create sync job",
			})
		}

		return c.JSON(http.StatusAccepted, TriggerSyncJobResponse{
			Success: true,
			Message: "Sync job triggered successfully",
			JobName: jobName,
		})
	}
}

// SyncJobStatusHandler reports the state of a sync Job
// @Summary Get sync job status
// @Tags sync
// @Produce json
// @Param user_id path string true "User ID"
// @Param name path string true "Job name"
// @Success 200 {object} scheduler.JobStatus
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/sync/jobs/{name} [get]
func SyncJobStatusHandler(jobs JobScheduler, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}
		jobName := c.Param("name")

		ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()

		status, err := jobs.GetJobStatus(ctx, userID, jobName)
		if err != nil {
			if scheduler.IsNotFound(err) {
				return errorJSON(c, http.StatusNotFound, "Job not found")
			}
			logger.Error().Err(err).Str("job", jobName).Msg("Failed to get job status")
			return errorJSON(c, http.StatusInternalServerError, "Failed to get job status")
		}
		return c.JSON(http.StatusOK, status)
	}
}
