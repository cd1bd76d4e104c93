package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/payment"
	"github.com/iliyamo/resource-rental/internal/service"
)

// Reservations is the part of service.ReservationService used over HTTP.
type Reservations interface {
	Create(ctx context.Context, actor model.Actor, req service.CreateRequest) (*model.Reservation, error)
	Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error)
	List(ctx context.Context, actor model.Actor, f model.ReservationFilter) (*model.ReservationPage, error)
	History(ctx context.Context, actor model.Actor, id uint64) ([]model.AuditEntry, error)
	Transition(ctx context.Context, actor model.Actor, id uint64, to model.Status, note string) (*model.Reservation, error)
	Availability(ctx context.Context, resourceID uint64, start, end time.Time) (*service.Availability, error)
}

// OrderCreator opens a gateway payment order for a reservation.
type OrderCreator interface {
	CreateOrder(ctx context.Context, actor model.Actor, reservationID uint64) (*payment.Order, error)
}

// ReservationHandler serves /v1/reservations and the public availability
// route.
type ReservationHandler struct {
	svc    Reservations // svc runs every reservation operation under the caller's Actor
	orders OrderCreator // orders is nil when no payment gateway is configured
}

// NewReservationHandler panics when svc is nil.  orders may be nil, in
// which case payment-order requests fail with an upstream error.
func NewReservationHandler(svc Reservations, orders OrderCreator) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc, orders: orders}
}

// createReservationBody is the JSON accepted by POST /v1/reservations.
// Requester fields are only read for owner quotations; a customer always
// books as themselves.
type createReservationBody struct {
	ResourceID     uint64    `json:"resource_id"`     // resource to book
	Start          time.Time `json:"start"`           // RFC3339, any offset; stored as UTC
	End            time.Time `json:"end"`             // exclusive end of the interval
	Quantity       int       `json:"quantity"`        // defaults to 1
	RequesterName  string    `json:"requester_name"`  // owner quotations only
	RequesterEmail string    `json:"requester_email"` // owner quotations only
	CustomerID     *uint64   `json:"customer_id"`     // links a quotation to a customer account
	Note           string    `json:"note"`            // copied into the first audit entry
}

// Create handles POST /v1/reservations.  Customers book for themselves and
// get a pending reservation; owners record a quotation for someone else.
func (h *ReservationHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var body createReservationBody
	if err := bind(c, &body); err != nil {
		return fail(c, err)
	}
	r, err := h.svc.Create(c.Request().Context(), a, service.CreateRequest{
		ResourceID:     body.ResourceID,
		Start:          body.Start.UTC(),
		End:            body.End.UTC(),
		Quantity:       body.Quantity,
		RequesterName:  body.RequesterName,
		RequesterEmail: body.RequesterEmail,
		CustomerID:     body.CustomerID,
		Note:           body.Note,
	})
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusCreated, r)
}

// List handles GET /v1/reservations?status=&resource_id=&page=&page_size=.
// Customers see their own reservations and owners see those on resources
// they own; the scope comes from the policy, not from query parameters.
// The response data is a page: {items, page, page_size, total}.
func (h *ReservationHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	f := model.ReservationFilter{Status: model.Status(c.QueryParam("status"))}
	if f.Page, err = queryInt(c, "page"); err != nil {
		return fail(c, err)
	}
	if f.PageSize, err = queryInt(c, "page_size"); err != nil {
		return fail(c, err)
	}
	rid, err := queryInt(c, "resource_id")
	if err != nil {
		return fail(c, err)
	}
	f.ResourceID = uint64(rid)
	page, err := h.svc.List(c.Request().Context(), a, f)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, page)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	r, err := h.svc.Get(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, r)
}

// History handles GET /v1/reservations/:id/history.
func (h *ReservationHandler) History(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	entries, err := h.svc.History(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	return respond(c, http.StatusOK, entries)
}

type transitionBody struct {
	To   model.Status `json:"to"`
	Note string       `json:"note"`
}

// Transition handles POST /v1/reservations/:id/transitions with a body of
// {"to": "<status>", "note": "..."}.
func (h *ReservationHandler) Transition(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var body transitionBody
	if err := bind(c, &body); err != nil {
		return fail(c, err)
	}
	if !body.To.Valid() {
		return fail(c, errUnknownStatus(body.To))
	}
	r, err := h.svc.Transition(c.Request().Context(), a, id, body.To, body.Note)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, r)
}

// CreateOrder handles POST /v1/reservations/:id/payment-order.  It opens a
// gateway order for the full reservation total and returns the client
// secret the front end needs to collect the payment.  The reservation stays
// pending until POST /v1/payments/verify succeeds.  Without a configured
// gateway the route answers 502.
func (h *ReservationHandler) CreateOrder(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if h.orders == nil {
		return fail(c, errPaymentsDisabled)
	}
	order, err := h.orders.CreateOrder(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusCreated, order)
}

// Availability handles GET /v1/resources/:id/availability?start=&end=.
func (h *ReservationHandler) Availability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	start, err := queryTime(c, "start")
	if err != nil {
		return fail(c, err)
	}
	end, err := queryTime(c, "end")
	if err != nil {
		return fail(c, err)
	}
	out, err := h.svc.Availability(c.Request().Context(), id, start, end)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, out)
}
