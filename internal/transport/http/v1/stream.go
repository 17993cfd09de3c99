package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stream upgrades to a WebSocket that receives the session's events.
// GET /api/chat/sessions/:session_id/stream
func (h *Handler) Stream(c echo.Context) error {
	if h.stream == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "streaming disabled"})
	}
	sessionID := c.Param("session_id")
	userID := currentUser(c)
	if err := h.service.Authorize(c.Request().Context(), sessionID, userID); err != nil {
		return writeError(c, err, "session not found")
	}
	return h.stream.Serve(c, sessionID, userID)
}
