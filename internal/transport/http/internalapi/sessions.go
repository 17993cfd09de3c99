package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CloseSession marks a session closed.
// POST /internal/sessions/:session_id/close
func (h *Handler) CloseSession(c echo.Context) error {
	if err := h.service.CloseSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return writeError(c, err, "session not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "closed"})
}
