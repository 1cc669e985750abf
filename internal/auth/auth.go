// Package auth protects the API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"mailtriage/internal/models"

	"github.com/labstack/echo/v4"
)

// ContextKey is where the middleware stores the accepted token
const ContextKey = "auth_token"

// Middleware requires "Authorization: Bearer <token>" or a token query
// parameter matching token. An empty token disables the check.
func Middleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}

		return func(c echo.Context) error {
			provided := c.Request().Header.Get(echo.HeaderAuthorization)
			if provided != "" {
				provided = strings.TrimPrefix(provided, "Bearer ")
			} else {
				provided = c.QueryParam("token")
			}

			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Success: false,
					Error:   "Unauthorized",
				})
			}

			c.Set(ContextKey, provided)
			return next(c)
		}
	}
}
