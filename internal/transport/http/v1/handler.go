// Package v1 provides the public chat API handlers.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
	"github.com/xiaot623/gogo/therapy/internal/service"
	"github.com/xiaot623/gogo/therapy/internal/stream"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	stream  *stream.Server
}

// NewHandler creates a new handler. streamServer may be nil to disable live streams.
func NewHandler(service *service.Service, streamServer *stream.Server) *Handler {
	return &Handler{
		service: service,
		stream:  streamServer,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	chat := e.Group("/api/chat", Identity())
	chat.POST("/sessions", h.CreateSession)
	chat.GET("/sessions", h.ListSessions)
	chat.GET("/sessions/:session_id", h.GetSession)
	chat.POST("/sessions/:session_id/messages", h.SendMessage)
	chat.GET("/sessions/:session_id/history", h.GetHistory)
	chat.GET("/sessions/:session_id/stream", h.Stream)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   Version,
		"in_flight": h.service.InFlight(),
	})
}

// writeError maps domain errors to HTTP responses. Internal details never reach the client.
func writeError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "unauthorized"})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logging.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
