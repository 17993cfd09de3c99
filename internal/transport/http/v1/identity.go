package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// UserIDHeader carries the authenticated user id set by the upstream auth layer.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// Identity rejects requests without an authenticated user id.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(UserIDHeader))
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

func currentUser(c echo.Context) string {
	if id, ok := c.Get(userIDKey).(string); ok {
		return id
	}
	return ""
}
