// Package internalapi provides HTTP handlers for collaborator-facing APIs.
// These APIs are only reachable on the internal port.
package internalapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
	"github.com/xiaot623/gogo/therapy/internal/service"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Users (identity collaborator)
	e.POST("/internal/users", h.RegisterUser)

	// Therapy context (memory/goals collaborator)
	e.GET("/internal/users/:user_id/context", h.GetTherapyContext)
	e.PUT("/internal/users/:user_id/context", h.PutTherapyContext)

	// Session administration
	e.POST("/internal/sessions/:session_id/close", h.CloseSession)
}

func writeError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound})
	default:
		logging.Error().Err(err).Str("path", c.Path()).Msg("internal request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
