package handlers

import (
	"net/http"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/labstack/echo/v4"
)

// ListTasksHandler lists the tasks of a user, earliest due first
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param user_id path string true "User ID"
// @Param completed query bool false "Filter on completion"
// @Param email_id query string false "Only tasks of this email"
// @Param from query string false "Due on or after (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Due before (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} models.TaskListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/tasks [get]
func ListTasksHandler(tasks EmailStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		filter := store.TaskFilter{UserID: userID, EmailID: c.QueryParam("email_id")}
		var err error
		if filter.Completed, err = queryBool(c, "completed"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "completed must be true or false")
		}
		if filter.DueFrom, err = queryTime(c, "from"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "from must be a date")
		}
		if filter.DueTo, err = queryTime(c, "to"); err != nil {
			return errorJSON(c, http.StatusBadRequest, "to must be a date")
		}

		list, err := tasks.ListTasks(c.Request().Context(), filter)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to list tasks")
		}
		return c.JSON(http.StatusOK, models.TaskListResponse{Success: true, Tasks: list, Count: len(list)})
	}
}

// UpdateTaskHandler changes completion, priority or due date of a task
// @Summary Update task
// @Tags tasks
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param id path string true "Task ID"
// @Param request body models.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} models.StoredTask
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/tasks/{id} [patch]
func UpdateTaskHandler(tasks EmailStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		var req models.UpdateTaskRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}

		ctx := c.Request().Context()
		task, err := tasks.GetTask(ctx, userID, c.Param("id"))
		if err != nil {
			return storeError(c, err, "Task")
		}

		if req.Completed != nil {
			task.Completed = *req.Completed
		}
		if req.Priority != nil {
			p := models.Priority(*req.Priority)
			if !p.Valid() {
				return errorJSON(c, http.StatusBadRequest, "priority must be low, medium or high")
			}
			task.Priority = p
		}
		switch {
		case req.ClearDueDate:
			task.DueDate = nil
		case req.DueDate != nil:
			due := req.DueDate.UTC()
			task.DueDate = &due
		}

		if err := tasks.UpdateTask(ctx, task); err != nil {
			return storeError(c, err, "Task")
		}
		return c.JSON(http.StatusOK, task)
	}
}
