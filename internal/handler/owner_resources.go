// This file contains the owner-facing resource catalog handlers and the
// public resource lookup.

package handler

import (
	"context"  // context is passed through to the catalog service
	"net/http" // http provides status code constants

	"github.com/labstack/echo/v4" // echo is the web framework used for handlers

	"github.com/iliyamo/resource-rental/internal/model" // model defines Resource and ResourcePatch
)

// Catalog is the part of service.CatalogService used over HTTP.
type Catalog interface {
	Create(ctx context.Context, actor model.Actor, r model.Resource) (*model.Resource, error)
	ListOwned(ctx context.Context, actor model.Actor) ([]model.Resource, error)
	Get(ctx context.Context, id uint64) (*model.Resource, error)
	Update(ctx context.Context, actor model.Actor, id uint64, patch model.ResourcePatch) (*model.Resource, error)
}

// ResourceHandler serves the owner catalog under /v1/owner/resources and
// the public resource lookup.
type ResourceHandler struct {
	svc Catalog // svc enforces ownership and validates every write
}

func NewResourceHandler(svc Catalog) *ResourceHandler {
	if svc == nil {
		panic("nil service passed to NewResourceHandler")
	}
	return &ResourceHandler{svc: svc}
}

// resourceBody is the JSON accepted by POST /v1/owner/resources.  Pointer
// fields distinguish "not sent" from an explicit false or zero.
type resourceBody struct {
	Name              string `json:"name"`               // required, trimmed
	Available         *bool  `json:"availability"`       // defaults to true
	QuantityAvailable *int   `json:"quantity_available"` // defaults to 1
	HourlyRateCents   int64  `json:"hourly_rate_cents"`  // rate below a day
	DailyRateCents    int64  `json:"daily_rate_cents"`   // rate from a day up
}

// Create handles POST /v1/owner/resources.  Availability defaults to true
// and quantity to one unit.
func (h *ResourceHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var body resourceBody
	if err := bind(c, &body); err != nil {
		return fail(c, err)
	}
	res := model.Resource{
		Name:              body.Name,
		Available:         true,
		QuantityAvailable: 1,
		HourlyRateCents:   body.HourlyRateCents,
		DailyRateCents:    body.DailyRateCents,
	}
	if body.Available != nil {
		res.Available = *body.Available
	}
	if body.QuantityAvailable != nil {
		res.QuantityAvailable = *body.QuantityAvailable
	}
	created, err := h.svc.Create(c.Request().Context(), a, res)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusCreated, created)
}

// List handles GET /v1/owner/resources.
func (h *ResourceHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	items, err := h.svc.ListOwned(c.Request().Context(), a)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, items)
}

// Update handles PATCH /v1/owner/resources/:id.  Only the fields present in
// the body change.  Editing another owner's resource answers 403, and an
// unknown id answers 404.  Existing reservations are not re-validated
// against the new quantity or availability.
func (h *ResourceHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var patch model.ResourcePatch
	if err := bind(c, &patch); err != nil {
		return fail(c, err)
	}
	updated, err := h.svc.Update(c.Request().Context(), a, id, patch)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, updated)
}

// Get handles GET /v1/resources/:id.
func (h *ResourceHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	res, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, res)
}
