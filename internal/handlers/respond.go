package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/labstack/echo/v4"
)

const maxUserIDLength = 128

// errorJSON writes the shared error payload
func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, models.ErrorResponse{Success: false, Error: msg})
}

// storeError maps store failures to a status code
func storeError(c echo.Context, err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, what+" not found")
	}
	return errorJSON(c, http.StatusInternalServerError, "Failed to load "+what)
}

// userIDParam validates the :user_id path parameter
func userIDParam(c echo.Context) (string, bool) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" || len(userID) > maxUserIDLength {
		return "", false
	}
	return userID, true
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// queryTime accepts RFC 3339 timestamps and plain dates
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
