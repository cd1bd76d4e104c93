package middleware

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/utils"
)

// JWTAuth validates a Bearer access token signed with secret and attaches
// the resulting model.Actor to the context.  Only HS256 tokens with an
// expiry, a numeric subject and a CUSTOMER or OWNER role are accepted; the
// SYSTEM role is never granted through a token.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthenticated(c, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			var claims utils.Claims
			tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil })
			if err != nil || !tok.Valid {
				return unauthenticated(c, "invalid token")
			}
			id, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || id == 0 {
				return unauthenticated(c, "invalid subject claim")
			}
			role := model.Role(claims.Role)
			if role != model.RoleRequester && role != model.RoleOwner {
				return unauthenticated(c, "invalid role claim")
			}
			SetActor(c, model.Actor{ID: id, Role: role, Email: strings.TrimSpace(claims.Email)})
			return next(c)
		}
	}
}
