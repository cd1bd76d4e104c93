package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/handler"
	"github.com/iliyamo/resource-rental/internal/middleware"
	"github.com/iliyamo/resource-rental/internal/model"
)

// RegisterCustomer mounts checkout staging under /v1/checkouts.  Only
// customers stage checkouts; the handler further restricts a session to the
// customer who opened it.
func RegisterCustomer(e *echo.Echo, h *handler.CheckoutHandler, jwtSecret string) {
	g := e.Group(
		"/v1/checkouts",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleRequester),
	)
	g.POST("", h.Create)
	g.GET("/:token", h.Get)
	g.PATCH("/:token", h.Update)
	g.POST("/:token/complete", h.Complete)
}
