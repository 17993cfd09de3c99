package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

type sessionSummary struct {
	SessionID string           `json:"sessionId"`
	Status    string           `json:"status"`
	Messages  []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// CreateSession starts a new chat session for the caller.
// POST /api/chat/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	session, err := h.service.CreateSession(c.Request().Context(), currentUser(c))
	if err != nil {
		return writeError(c, err, "user not found")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message":   "Chat session created successfully",
		"sessionId": session.SessionID,
	})
}

// ListSessions lists the caller's sessions, most recently updated first.
// GET /api/chat/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context(), currentUser(c))
	if err != nil {
		return writeError(c, err, "sessions not found")
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			SessionID: s.SessionID,
			Status:    string(s.Status),
			Messages:  s.Messages,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetSession returns the full session document.
// GET /api/chat/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		return writeError(c, err, "session not found")
	}
	return c.JSON(http.StatusOK, session)
}
