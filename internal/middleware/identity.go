package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

const actorKey = "actor"

// SetActor stores the authenticated actor on the request context.
func SetActor(c echo.Context, a model.Actor) { c.Set(actorKey, a) }

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok
}

// subject identifies the caller for rate limit keys; "anon" when no actor
// is attached.
func subject(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.ID, 10)
	}
	return "anon"
}

// deny writes the error envelope used by every response of the API.
func deny(c echo.Context, status int, kind apperr.Kind, msg string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   kind,
		"message": msg,
	})
}

func unauthenticated(c echo.Context, msg string) error {
	return deny(c, http.StatusUnauthorized, apperr.KindUnauthenticated, msg)
}
