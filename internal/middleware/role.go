package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// RequireRole lets the request through only when the actor attached by
// JWTAuth has one of roles.  It answers 401 when no actor is present.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := ActorFrom(c)
			if !ok {
				return unauthenticated(c, "authentication required")
			}
			if !allowed[a.Role] {
				return deny(c, http.StatusForbidden, apperr.KindForbidden, "role "+string(a.Role)+" may not use this endpoint")
			}
			return next(c)
		}
	}
}
