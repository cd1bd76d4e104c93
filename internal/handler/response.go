// Package handler exposes the reservation engine over HTTP.  Every response
// uses the Envelope shape, including errors raised by echo itself.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/middleware"
	"github.com/iliyamo/resource-rental/internal/model"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   apperr.Kind `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Details any         `json:"details,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// fail writes err as an error envelope.  Unclassified errors are logged and
// reported without their internal message.
func fail(c echo.Context, err error) error {
	ae := apperr.From(err)
	status := ae.HTTPStatus()
	msg := ae.Message
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(status, Envelope{Error: ae.Kind, Message: msg, Details: ae.Details})
}

// ErrorHandler renders errors that escape handlers and middleware, such as
// echo's own 404 and 405, in the envelope shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		kind := apperr.KindInternal
		switch {
		case he.Code == http.StatusNotFound:
			kind = apperr.KindNotFound
		case he.Code == http.StatusUnauthorized:
			kind = apperr.KindUnauthenticated
		case he.Code == http.StatusForbidden:
			kind = apperr.KindForbidden
		case he.Code < 500:
			kind = apperr.KindValidation
		default:
			c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		}
		if err := c.JSON(he.Code, Envelope{Error: kind, Message: msg}); err != nil {
			c.Logger().Error(err)
		}
		return
	}
	if err := fail(c, err); err != nil {
		c.Logger().Error(err)
	}
}

func actor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, apperr.New(apperr.KindUnauthenticated, "authentication required")
	}
	return a, nil
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryTime(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, apperr.Validation("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be an RFC3339 timestamp", name)
	}
	return t.UTC(), nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
