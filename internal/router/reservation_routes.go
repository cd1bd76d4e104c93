package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/handler"
	"github.com/iliyamo/resource-rental/internal/middleware"
	"github.com/iliyamo/resource-rental/internal/model"
)

// RegisterReservations mounts /v1/reservations for customers and owners.
// Which reservations each role may see or change is decided by the
// authorization policy inside the service, not by the route.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleRequester, model.RoleOwner),
	)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/history", h.History)
	g.POST("/:id/transitions", h.Transition)
	g.POST("/:id/payment-order", h.CreateOrder, middleware.RequireRole(model.RoleRequester))
}
