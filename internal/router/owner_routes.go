package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/handler"
	"github.com/iliyamo/resource-rental/internal/middleware"
	"github.com/iliyamo/resource-rental/internal/model"
)

// RegisterOwner mounts the owner catalog.  Only OWNER tokens pass; the
// service additionally checks that the resource belongs to the caller.
func RegisterOwner(e *echo.Echo, h *handler.ResourceHandler, jwtSecret string) {
	g := e.Group(
		"/v1/owner/resources",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PATCH("/:id", h.Update)
}
