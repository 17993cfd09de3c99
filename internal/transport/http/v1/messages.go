package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

type sendMessageRequest struct {
	Message string `json:"message"`
}

type replyMetadata struct {
	Progress    *domain.Progress   `json:"progress"`
	Technique   string             `json:"technique"`
	Goal        string             `json:"goal"`
	SafetyLevel domain.SafetyLevel `json:"safetyLevel"`
}

// historyEntry is the history view of a message; metadata stays on the session document.
type historyEntry struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type sendMessageResponse struct {
	Response string          `json:"response"`
	Message  string          `json:"message"`
	Analysis domain.Analysis `json:"analysis"`
	Metadata replyMetadata   `json:"metadata"`
	Degraded bool            `json:"degraded"`
}

// SendMessage runs one chat turn.
// POST /api/chat/sessions/:session_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.service.SendMessage(c.Request().Context(), c.Param("session_id"), currentUser(c), req.Message)
	if err != nil {
		if result == nil || !errors.Is(err, domain.ErrGeneration) {
			return writeError(c, err, "session not found")
		}
		logging.Warn().Err(err).Str("session_id", result.SessionID).Msg("returning degraded reply")
	}

	return c.JSON(http.StatusOK, sendMessageResponse{
		Response: result.Reply,
		Message:  result.Reply,
		Analysis: result.Analysis,
		Metadata: replyMetadata{
			Progress:    result.Metadata.Progress,
			Technique:   result.Metadata.Technique,
			Goal:        result.Metadata.Goal,
			SafetyLevel: result.Metadata.SafetyLevel,
		},
		Degraded: result.Degraded,
	})
}

// GetHistory returns the ordered messages of a session.
// GET /api/chat/sessions/:session_id/history
func (h *Handler) GetHistory(c echo.Context) error {
	messages, err := h.service.GetHistory(c.Request().Context(), c.Param("session_id"), currentUser(c))
	if err != nil {
		return writeError(c, err, "session not found")
	}
	entries := make([]historyEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, historyEntry{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return c.JSON(http.StatusOK, entries)
}
