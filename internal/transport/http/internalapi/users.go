package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

type registerUserRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// RegisterUser registers or renames a user.
// POST /internal/users
func (h *Handler) RegisterUser(c echo.Context) error {
	var req registerUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	user, err := h.service.RegisterUser(c.Request().Context(), req.UserID, req.Name)
	if err != nil {
		return writeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// GetTherapyContext returns a user's memory and goals.
// GET /internal/users/:user_id/context
func (h *Handler) GetTherapyContext(c echo.Context) error {
	tc, err := h.service.GetTherapyContext(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return writeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, tc)
}

// PutTherapyContext replaces a user's memory and goals.
// PUT /internal/users/:user_id/context
func (h *Handler) PutTherapyContext(c echo.Context) error {
	var req domain.TherapyContext
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.PutTherapyContext(c.Request().Context(), c.Param("user_id"), req); err != nil {
		return writeError(c, err, "user not found")
	}
	return c.NoContent(http.StatusNoContent)
}
