package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-rental/internal/config"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	a, ok := ActorFrom(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, a)
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, "a@example.com", time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	rec := serve(e, http.MethodGet, "/me", token(t, 7, "CUSTOMER"))
	require.Equal(t, http.StatusOK, rec.Code)
	var a model.Actor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, uint64(7), a.ID)
	assert.Equal(t, model.RoleRequester, a.Role)
	assert.Equal(t, "a@example.com", a.Email)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, utils.Claims{
		Role: "OWNER",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredRaw, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, utils.Claims{
		Role:             "OWNER",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	otherKey, err := utils.NewAccessToken("other", 7, "OWNER", "", time.Hour)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"missing":     "",
		"garbage":     "not-a-jwt",
		"expired":     expiredRaw,
		"no expiry":   noExp,
		"wrong key":   otherKey.Token,
		"system role": token(t, 7, "SYSTEM"),
		"bad subject": token(t, 0, "OWNER"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", raw)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthenticated", errorKind(t, rec))
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/owner", whoami, JWTAuth(secret), RequireRole(model.RoleOwner))
	e.GET("/open", whoami, RequireRole(model.RoleOwner))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/owner", token(t, 5, "OWNER")).Code)

	rec := serve(e, http.MethodGet, "/owner", token(t, 5, "CUSTOMER"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorKind(t, rec))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/open", "").Code)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	first := serve(e, http.MethodGet, "/limited", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/limited", "").Code)

	blocked := serve(e, http.MethodGet, "/limited", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Equal(t, "too_many_requests", errorKind(t, blocked))
}

func TestTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 10,
	}
	calls := 0
	e := echo.New()
	e.GET("/items/:id", func(c echo.Context) error {
		calls++
		if c.Param("id") == "missing" {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "data": c.Param("id")})
	}, NewRedisCache(cfg, rdb))

	miss := serve(e, http.MethodGet, "/items/1?x=1", "")
	require.Equal(t, http.StatusOK, miss.Code)
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := serve(e, http.MethodGet, "/items/1?x=1", "")
	require.Equal(t, http.StatusOK, hit.Code)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.JSONEq(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, 1, calls)

	serve(e, http.MethodGet, "/items/2?x=1", "")
	assert.Equal(t, 2, calls)

	serve(e, http.MethodGet, "/items/missing", "")
	serve(e, http.MethodGet, "/items/missing", "")
	assert.Equal(t, 4, calls)
}

func TestPayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
