package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/service"
)

// Checkouts is the part of service.CheckoutService used over HTTP.
type Checkouts interface {
	Create(ctx context.Context, actor model.Actor, req service.CreateCheckoutRequest) (*model.CheckoutStaging, error)
	Get(ctx context.Context, actor model.Actor, token string) (*model.CheckoutStaging, error)
	Update(ctx context.Context, actor model.Actor, token string, patch model.AddressPatch) (*model.CheckoutStaging, error)
	Complete(ctx context.Context, actor model.Actor, token string) ([]model.Reservation, error)
}

// CheckoutHandler serves /v1/checkouts.  A session is addressed by its
// opaque token and is visible only to the customer who opened it.
type CheckoutHandler struct {
	svc Checkouts // svc holds the staging logic and the cache
}

func NewCheckoutHandler(svc Checkouts) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{svc: svc}
}

func token(c echo.Context) (string, error) {
	tok := strings.TrimSpace(c.Param("token"))
	if tok == "" {
		return "", apperr.Validation("checkout token is required")
	}
	return tok, nil
}

// Create handles POST /v1/checkouts.
func (h *CheckoutHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.CreateCheckoutRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	for i := range req.Items {
		req.Items[i].Start = req.Items[i].Start.UTC()
		req.Items[i].End = req.Items[i].End.UTC()
	}
	st, err := h.svc.Create(c.Request().Context(), a, req)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusCreated, st)
}

// Get handles GET /v1/checkouts/:token.
func (h *CheckoutHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	tok, err := token(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := h.svc.Get(c.Request().Context(), a, tok)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, st)
}

// Update handles PATCH /v1/checkouts/:token.  Only delivery_address and
// billing_address with their whitelisted fields are accepted; any other key
// is rejected rather than ignored.
func (h *CheckoutHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	tok, err := token(c)
	if err != nil {
		return fail(c, err)
	}
	patch, err := decodePatch(c.Request().Body)
	if err != nil {
		return fail(c, err)
	}
	st, err := h.svc.Update(c.Request().Context(), a, tok, patch)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, st)
}

func decodePatch(r io.Reader) (model.AddressPatch, error) {
	var p model.AddressPatch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return p, apperr.Validation("request body is empty")
		}
		return p, apperr.Validation("invalid patch: %v", err)
	}
	if dec.More() {
		return p, apperr.Validation("invalid patch: trailing data")
	}
	return p, nil
}

// Complete handles POST /v1/checkouts/:token/complete.
func (h *CheckoutHandler) Complete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	tok, err := token(c)
	if err != nil {
		return fail(c, err)
	}
	rs, err := h.svc.Complete(c.Request().Context(), a, tok)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusCreated, rs)
}
