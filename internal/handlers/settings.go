package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mailtriage/internal/mailsource"
	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SettingsStore reads and writes per-user settings
type SettingsStore interface {
	GetEmailSettings(ctx context.Context, userID string) (*models.EmailSettings, error)
	SaveEmailSettings(ctx context.Context, settings *models.EmailSettings) error
	GetAISettings(ctx context.Context, userID string) (models.AISettings, error)
	SaveAISettings(ctx context.Context, settings *models.AISettings) error
}

// ScheduleManager keeps the periodic sync of a user in line with its settings
type ScheduleManager interface {
	EnsureSyncSchedule(ctx context.Context, userID, frequency string) error
}

// ConnectionTester logs into a mailbox without fetching
type ConnectionTester interface {
	TestConnection(ctx context.Context, settings models.EmailSettings) (int, error)
}

// EmailSettingsResponse wraps mailbox settings. The password is never returned.
type EmailSettingsResponse struct {
	Success  bool                 `json:"success" example:"true"`
	Settings models.EmailSettings `json:"settings"`
	Warning  string               `json:"warning,omitempty"`
}

// AISettingsResponse wraps AI settings
type AISettingsResponse struct {
	Success  bool              `json:"success" example:"true"`
	Settings models.AISettings `json:"settings"`
}

// GetEmailSettingsHandler returns the mailbox settings of a user
// @Summary Get email settings
// @Tags settings
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} EmailSettingsResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/settings/email [get]
func GetEmailSettingsHandler(settings SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		s, err := settings.GetEmailSettings(c.Request().Context(), userID)
		if err != nil {
			return storeError(c, err, "Email settings")
		}
		s.Password = ""
		return c.JSON(http.StatusOK, EmailSettingsResponse{Success: true, Settings: *s})
	}
}

// SaveEmailSettingsHandler validates and stores the mailbox settings of a user.
// An empty password keeps the stored one.
// @Summary Save email settings
// @Tags settings
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param settings body models.EmailSettings true "Mailbox settings"
// @Success 200 {object} EmailSettingsResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/settings/email [put]
func SaveEmailSettingsHandler(settings SettingsStore, schedules ScheduleManager, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		var req models.EmailSettings
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}
		req.UserID = userID
		if err := normalizeEmailSettings(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}

		ctx := c.Request().Context()
		if req.Password == "" {
			existing, err := settings.GetEmailSettings(ctx, userID)
			switch {
			case err == nil:
				req.Password = existing.Password
			case !errors.Is(err, store.ErrNotFound):
				return errorJSON(c, http.StatusInternalServerError, "Failed to load email settings")
			}
		}

		if err := settings.SaveEmailSettings(ctx, &req); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save email settings")
			return errorJSON(c, http.StatusInternalServerError, "Failed to save email settings")
		}

		resp := EmailSettingsResponse{Success: true, Settings: req}
		resp.Settings.Password = ""

		if schedules != nil {
			if err := schedules.EnsureSyncSchedule(ctx, userID, req.FetchFrequency); err != nil {
				logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to update sync schedule")
				resp.Warning = "Settings saved but the sync schedule could not be updated"
			}
		}

		return c.JSON(http.StatusOK, resp)
	}
}

func normalizeEmailSettings(s *models.EmailSettings) error {
	s.Protocol = strings.ToLower(strings.TrimSpace(s.Protocol))
	s.Server = strings.TrimSpace(s.Server)
	s.Username = strings.TrimSpace(s.Username)

	if s.Protocol == "" {
		s.Protocol = mailsource.ProtocolIMAP
	}
	if s.Protocol != mailsource.ProtocolIMAP && s.Protocol != mailsource.ProtocolPOP3 {
		return fmt.Errorf("protocol must be imap or pop3")
	}
	if s.Server == "" {
		return fmt.Errorf("server is required")
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if s.FetchFrequency == "" {
		s.FetchFrequency = "12h"
	}
	if !models.FetchFrequencies[s.FetchFrequency] {
		return fmt.Errorf("fetch_frequency must be one of 6h, 12h, 24h")
	}
	return nil
}

// TestEmailSettingsHandler tries to log in with the submitted settings.
// An empty password is taken from the stored settings.
// @Summary Test email settings
// @Tags settings
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param settings body models.EmailSettings true "Mailbox settings"
// @Success 200 {object} models.ConnectionTestResponse
// @Failure 400 {object} models.ConnectionTestResponse
// @Failure 502 {object} models.ConnectionTestResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/settings/email/test [post]
func TestEmailSettingsHandler(settings SettingsStore, tester ConnectionTester) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		var req models.EmailSettings
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}
		req.UserID = userID
		if err := normalizeEmailSettings(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ConnectionTestResponse{Success: false, Message: err.Error()})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 45*time.Second)
		defer cancel()

		if req.Password == "" {
			if existing, err := settings.GetEmailSettings(ctx, userID); err == nil {
				req.Password = existing.Password
			}
		}

		count, err := tester.TestConnection(ctx, req)
		if err != nil {
			status := http.StatusBadGateway
			if mailsource.IsProtocolError(err) {
				status = http.StatusBadRequest
			}
			return c.JSON(status, models.ConnectionTestResponse{Success: false, Message: err.Error()})
		}

		return c.JSON(http.StatusOK, models.ConnectionTestResponse{
			Success:  true,
			Message:  fmt.Sprintf("Successfully connected to %s using %s.", req.Server, strings.ToUpper(req.Protocol)),
			Messages: uint32(count),
		})
	}
}

// GetAISettingsHandler returns the AI settings of a user, defaults when none are saved
// @Summary Get AI settings
// @Tags settings
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} AISettingsResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/settings/ai [get]
func GetAISettingsHandler(settings SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		s, err := settings.GetAISettings(c.Request().Context(), userID)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to load AI settings")
		}
		return c.JSON(http.StatusOK, AISettingsResponse{Success: true, Settings: s})
	}
}

// SaveAISettingsHandler stores the AI settings of a user
// @Summary Save AI settings
// @Tags settings
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param settings body models.AISettings true "AI settings"
// @Success 200 {object} AISettingsResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{user_id}/settings/ai [put]
func SaveAISettingsHandler(settings SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := userIDParam(c)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Invalid user id")
		}

		req := models.DefaultAISettings(userID)
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}
		req.UserID = userID

		if err := settings.SaveAISettings(c.Request().Context(), &req); err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to save AI settings")
		}
		return c.JSON(http.StatusOK, AISettingsResponse{Success: true, Settings: req})
	}
}
