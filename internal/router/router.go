// Package router registers the HTTP routes of the reservation engine.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resource-rental/internal/config"
	"github.com/iliyamo/resource-rental/internal/handler"
	"github.com/iliyamo/resource-rental/internal/middleware"
)

// Deps bundles what the routes need.  Redis may be nil, which disables the
// response cache and the rate limiter.
type Deps struct {
	JWTSecret    string
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Health       handler.Pinger
	Resources    *handler.ResourceHandler
	Reservations *handler.ReservationHandler
	Checkouts    *handler.CheckoutHandler
	Payments     *handler.PaymentHandler
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	RegisterPublic(e, d)
	RegisterOwner(e, d.Resources, d.JWTSecret)
	RegisterCustomer(e, d.Checkouts, d.JWTSecret)
	RegisterReservations(e, d.Reservations, d.JWTSecret)
}

// RegisterPublic mounts the unauthenticated routes: the health probe,
// resource lookups, the cached availability query and the signature-gated
// payment callback.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Health))

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	e.GET("/v1/resources/:id", d.Resources.Get, limit)
	// A cached answer can report a window as free for up to
	// CACHE_AVAILABILITY_TTL after a booking takes it.  Bookings re-check
	// under the resource lock, so this never lets two of them overlap.
	e.GET("/v1/resources/:id/availability", d.Reservations.Availability,
		limit,
		middleware.NewRedisCache(d.Cache.ForAvailability(), d.Redis),
	)
	e.POST("/v1/payments/verify", d.Payments.Verify, limit)
}
