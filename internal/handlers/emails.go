package handlers

import (
	"context"
	"errors"
	"net/http"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// EmailStore is the email and task persistence used by the inbox endpoints
type EmailStore interface {
	ListEmails(ctx context.Context, filter store.EmailFilter) ([]models.StoredEmail, error)
	GetEmail(ctx context.Context, userID, id string) (*models.StoredEmail, error)
	UpdateEmailFlags(ctx context.Context, userID, id string, read, starred *bool) error
	DeleteEmail(ctx context.Context, userID, id string) error
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]models.StoredTask, error)
	GetTask(ctx context.Context, userID, id string) (*models.StoredTask, error)
	UpdateTask(ctx context.Context, task *models.StoredTask) error
}

// IndexRemover drops a deleted email from the search index
type IndexRemover interface {
	Delete(ctx context.Context, emailID string) error
}

// ListEmailsHandler lists the stored emails of a user, newest first
// @Summary List emails
// @Tags emails
// @Produce json
// @Param user_id path string true "User ID"
// @Param q query string false "Text match on subject, sender or body"
// @Param unread query bool false "Only unread (true) or read (false) emails"
// @Param starred query bool false "Filter on the starred flag"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} models.EmailListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/emails [get]
func ListEmailsHandler(emails EmailStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		filter := store.EmailFilter{UserID: userID, Query: c.QueryParam("q")}
		var err error
		if filter.Unread, err = queryBool(c, "unread"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "unread must be true or false")
		}
		if filter.Starred, err = queryBool(c, "starred"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "starred must be true or false")
		}
		if filter.Limit, err = queryInt(c, "limit"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "limit must be a number")
		}
		if filter.Offset, err = queryInt(c, "offset"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "offset must be a number")
		}

		list, err := emails.ListEmails(c.Request().Context(), filter)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to list emails")
		}
		return c.JSON(http.StatusOK, models.EmailListResponse{Success: true, Emails: list, Count: len(list)})
	}
}

// GetEmailHandler returns one email with its tasks
// @Summary Get email
// @Tags emails
// @Produce json
// @Param user_id path string true "User ID"
// @Param id path string true "Email ID"
// @Success 200 {object} models.EmailDetailResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/emails/{id} [get]
func GetEmailHandler(emails EmailStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}
		ctx := c.Request().Context()

		email, err := emails.GetEmail(ctx, userID, c.Param("id"))
		if err != nil {
			return storeError(c, err, "Email")
		}
		tasks, err := emails.ListTasks(ctx, store.TaskFilter{UserID: userID, EmailID: email.ID})
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to load tasks")
		}
		email.TaskCount = len(tasks)

		return c.JSON(http.StatusOK, models.EmailDetailResponse{Success: true, Email: *email, Tasks: tasks})
	}
}

// UpdateEmailHandler sets the read and starred flags of an email
// @Summary Update email flags
// @Tags emails
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param id path string true "Email ID"
// @Param request body models.UpdateEmailRequest true "Flags to change"
// @Success 200 {object} models.EmailDetailResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/emails/{id} [patch]
func UpdateEmailHandler(emails EmailStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		var req models.UpdateEmailRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}
		if req.Read == nil && req.Starred == nil {
			return errorJSON(c, http.StatusBadRequest, "Nothing to update")
		}

		ctx := c.Request().Context()
		id := c.Param("id")
		if err := emails.UpdateEmailFlags(ctx, userID, id, req.Read, req.Starred); err != nil {
			return storeError(c, err, "Email")
		}

		email, err := emails.GetEmail(ctx, userID, id)
		if err != nil {
			return storeError(c, err, "Email")
		}
		return c.JSON(http.StatusOK, models.EmailDetailResponse{Success: true, Email: *email, Tasks: []models.StoredTask{}})
	}
}

// DeleteEmailHandler deletes an email and its tasks
// @Summary Delete email
// @Tags emails
// @Param user_id path string true "User ID"
// @Param id path string true "Email ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/emails/{id} [delete]
func DeleteEmailHandler(emails EmailStore, index IndexRemover, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}
		ctx := c.Request().Context()
		id := c.Param("id")

		if err := emails.DeleteEmail(ctx, userID, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errorJSON(c, http.StatusNotFound, "Email not found")
			}
			return errorJSON(c, http.StatusInternalServerError, "Failed to delete email")
		}

		if index != nil {
			if err := index.Delete(ctx, id); err != nil {
				logger.Warn().Err(err).Str("email_id", id).Msg("Failed to remove email from search index")
			}
		}
		return c.NoContent(http.StatusNoContent)
	}
}
