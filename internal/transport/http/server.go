// Package http provides the HTTP servers of the therapy orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/therapy/internal/service"
	"github.com/xiaot623/gogo/therapy/internal/stream"
	"github.com/xiaot623/gogo/therapy/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/gogo/therapy/internal/transport/http/v1"
)

// NewExternalServer creates and configures the public chat API server.
func NewExternalServer(svc *service.Service, streamServer *stream.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, streamServer)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}

// NewInternalServer creates and configures the collaborator-facing server.
func NewInternalServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	internalHandler := internalapi.NewHandler(svc)

	// Register Routes
	internalHandler.RegisterRoutes(e)

	return e
}
