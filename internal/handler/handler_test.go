package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/middleware"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/payment"
	"github.com/iliyamo/resource-rental/internal/service"
)

var customer = model.Actor{ID: 1, Role: model.RoleRequester, Email: "alice@example.com"}

type fakeReservations struct {
	created   service.CreateRequest
	filter    model.ReservationFilter
	to        model.Status
	actor     model.Actor
	err       error
	from, to2 time.Time
}

func (f *fakeReservations) Create(_ context.Context, a model.Actor, req service.CreateRequest) (*model.Reservation, error) {
	f.actor, f.created = a, req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: 9, ResourceID: req.ResourceID, Status: model.StatusPending}, nil
}

func (f *fakeReservations) Get(_ context.Context, a model.Actor, id uint64) (*model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: id}, nil
}

func (f *fakeReservations) List(_ context.Context, a model.Actor, flt model.ReservationFilter) (*model.ReservationPage, error) {
	f.filter = flt
	return &model.ReservationPage{Items: []model.Reservation{}, Page: 1, PageSize: 20}, f.err
}

func (f *fakeReservations) History(context.Context, model.Actor, uint64) ([]model.AuditEntry, error) {
	return nil, f.err
}

func (f *fakeReservations) Transition(_ context.Context, a model.Actor, id uint64, to model.Status, _ string) (*model.Reservation, error) {
	f.to = to
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: id, Status: to}, nil
}

func (f *fakeReservations) Availability(_ context.Context, id uint64, start, end time.Time) (*service.Availability, error) {
	f.from, f.to2 = start, end
	if f.err != nil {
		return nil, f.err
	}
	return &service.Availability{ResourceID: id, Start: start, End: end, Available: true, Busy: []model.Interval{}}, nil
}

type fakeCheckouts struct {
	patch model.AddressPatch
	err   error
}

func (f *fakeCheckouts) Create(_ context.Context, a model.Actor, req service.CreateCheckoutRequest) (*model.CheckoutStaging, error) {
	return &model.CheckoutStaging{Token: "tok", RequesterID: a.ID, Status: model.CheckoutActive}, f.err
}

func (f *fakeCheckouts) Get(_ context.Context, a model.Actor, tok string) (*model.CheckoutStaging, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.CheckoutStaging{Token: tok}, nil
}

func (f *fakeCheckouts) Update(_ context.Context, a model.Actor, tok string, p model.AddressPatch) (*model.CheckoutStaging, error) {
	f.patch = p
	st := &model.CheckoutStaging{Token: tok}
	st.Apply(p)
	return st, f.err
}

func (f *fakeCheckouts) Complete(context.Context, model.Actor, string) ([]model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.Reservation{{ID: 1}, {ID: 2}}, nil
}

type fakeVerifier struct{ err error }

func (f fakeVerifier) Verify(_ context.Context, a payment.Assertion) (*model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: a.ReservationID, Status: model.StatusConfirmed}, nil
}

func asActor(a model.Actor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetActor(c, a)
			return next(c)
		}
	}
}

func newServer(res *fakeReservations, co *fakeCheckouts, v fakeVerifier) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	rh := NewReservationHandler(res, nil)
	ch := NewCheckoutHandler(co)
	ph := NewPaymentHandler(v)

	e.GET("/v1/resources/:id/availability", rh.Availability)
	e.POST("/v1/payments/verify", ph.Verify)
	e.GET("/anon/reservations", rh.List)

	g := e.Group("/v1", asActor(customer))
	g.POST("/reservations", rh.Create)
	g.GET("/reservations", rh.List)
	g.GET("/reservations/:id", rh.Get)
	g.POST("/reservations/:id/transitions", rh.Transition)
	g.POST("/reservations/:id/payment-order", rh.CreateOrder)
	g.POST("/checkouts", ch.Create)
	g.PATCH("/checkouts/:token", ch.Update)
	g.POST("/checkouts/:token/complete", ch.Complete)
	return e
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, Envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestCreateReservation(t *testing.T) {
	res := &fakeReservations{}
	e := newServer(res, &fakeCheckouts{}, fakeVerifier{})

	rec, env := do(e, http.MethodPost, "/v1/reservations",
		`{"resource_id":3,"start":"2024-06-01T10:00:00+02:00","end":"2024-06-02T10:00:00+02:00","quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, customer, res.actor)
	assert.Equal(t, uint64(3), res.created.ResourceID)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), res.created.Start)
	assert.Equal(t, time.UTC, res.created.Start.Location())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   apperr.Kind
	}{
		{"conflict", apperr.New(apperr.KindConflict, "taken").WithDetails([]uint64{4}), http.StatusConflict, apperr.KindConflict},
		{"range", apperr.ErrInvalidRange, http.StatusBadRequest, apperr.KindInvalidRange},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden, apperr.KindForbidden},
		{"upstream", apperr.ErrUpstreamTimeout, http.StatusGatewayTimeout, apperr.KindUpstreamTimeout},
		{"internal", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, apperr.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newServer(&fakeReservations{err: tc.err}, &fakeCheckouts{}, fakeVerifier{})
			rec, env := do(e, http.MethodPost, "/v1/reservations", `{"resource_id":1}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.kind, env.Error)
			if tc.kind == apperr.KindInternal {
				assert.Equal(t, "internal error", env.Message)
			}
		})
	}

	e := newServer(&fakeReservations{err: apperr.New(apperr.KindConflict, "taken").WithDetails([]uint64{4})}, &fakeCheckouts{}, fakeVerifier{})
	rec, _ := do(e, http.MethodPost, "/v1/reservations", `{"resource_id":1}`)
	assert.JSONEq(t, `{"success":false,"error":"conflict","message":"taken","details":[4]}`, rec.Body.String())
}

func TestRequestValidation(t *testing.T) {
	e := newServer(&fakeReservations{}, &fakeCheckouts{}, fakeVerifier{})

	rec, env := do(e, http.MethodPost, "/v1/reservations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindValidation, env.Error)

	rec, _ = do(e, http.MethodGet, "/v1/reservations/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(e, http.MethodGet, "/v1/reservations?page=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(e, http.MethodPost, "/v1/reservations/5/transitions", `{"to":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindValidation, env.Error)

	rec, env = do(e, http.MethodGet, "/anon/reservations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.KindUnauthenticated, env.Error)

	rec, env = do(e, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.KindNotFound, env.Error)
}

func TestListPassesFilter(t *testing.T) {
	res := &fakeReservations{}
	e := newServer(res, &fakeCheckouts{}, fakeVerifier{})
	rec, env := do(e, http.MethodGet, "/v1/reservations?status=pending&resource_id=3&page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, model.ReservationFilter{Status: model.StatusPending, ResourceID: 3, Page: 2, PageSize: 5}, res.filter)
}

func TestTransition(t *testing.T) {
	res := &fakeReservations{}
	e := newServer(res, &fakeCheckouts{}, fakeVerifier{})
	rec, _ := do(e, http.MethodPost, "/v1/reservations/5/transitions", `{"to":"cancelled","note":"changed plans"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusCancelled, res.to)
}

func TestCreateOrderWithoutGateway(t *testing.T) {
	e := newServer(&fakeReservations{}, &fakeCheckouts{}, fakeVerifier{})
	rec, env := do(e, http.MethodPost, "/v1/reservations/5/payment-order", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperr.KindUpstreamError, env.Error)
}

func TestAvailability(t *testing.T) {
	res := &fakeReservations{}
	e := newServer(res, &fakeCheckouts{}, fakeVerifier{})

	rec, env := do(e, http.MethodGet, "/v1/resources/2/availability?start=2024-06-01T00:00:00Z&end=2024-06-02T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), res.to2)

	rec, _ = do(e, http.MethodGet, "/v1/resources/2/availability?start=tomorrow&end=2024-06-02T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(e, http.MethodGet, "/v1/resources/2/availability?start=2024-06-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutPatch(t *testing.T) {
	co := &fakeCheckouts{}
	e := newServer(&fakeReservations{}, co, fakeVerifier{})

	rec, env := do(e, http.MethodPatch, "/v1/checkouts/tok", `{"delivery_address":{"city":"Porto","country":"PT"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, co.patch.Delivery)
	require.NotNil(t, co.patch.Delivery.City)
	assert.Equal(t, "Porto", *co.patch.Delivery.City)
	assert.Nil(t, co.patch.Billing)

	for _, body := range []string{
		`{"status":"completed"}`,
		`{"delivery_address":{"city":"Porto","items":[]}}`,
		`{"delivery_address":{}} {}`,
		``,
	} {
		rec, env := do(e, http.MethodPatch, "/v1/checkouts/tok", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, apperr.KindValidation, env.Error, body)
	}
}

func TestCheckoutCreateAndComplete(t *testing.T) {
	e := newServer(&fakeReservations{}, &fakeCheckouts{}, fakeVerifier{})
	rec, _ := do(e, http.MethodPost, "/v1/checkouts", `{"items":[{"resource_id":1,"quantity":1,"start":"2024-06-01T00:00:00Z","end":"2024-06-02T00:00:00Z"}]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(e, http.MethodPost, "/v1/checkouts/tok/complete", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	items, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)

	e = newServer(&fakeReservations{}, &fakeCheckouts{err: apperr.ErrNotFound}, fakeVerifier{})
	rec, _ = do(e, http.MethodPost, "/v1/checkouts/tok/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyPayment(t *testing.T) {
	e := newServer(&fakeReservations{}, &fakeCheckouts{}, fakeVerifier{})
	rec, env := do(e, http.MethodPost, "/v1/payments/verify", `{"order_id":"pi_1","payment_id":"p","signature":"ab","reservation_id":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	e = newServer(&fakeReservations{}, &fakeCheckouts{}, fakeVerifier{err: apperr.ErrSignatureMismatch})
	rec, env = do(e, http.MethodPost, "/v1/payments/verify", `{"order_id":"pi_1","payment_id":"p","signature":"ab","reservation_id":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindSignatureMismatch, env.Error)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/up", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("gone")}))
	e.GET("/nodb", Health(nil))

	rec, env := do(e, http.MethodGet, "/up", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	rec, _ = do(e, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = do(e, http.MethodGet, "/nodb", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
