package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/payment"
)

var errPaymentsDisabled = apperr.New(apperr.KindUpstreamError, "payment gateway is not configured")

func errUnknownStatus(s model.Status) error {
	return apperr.Validation("unknown status %q", s)
}

// Verifier checks a gateway payment assertion.
type Verifier interface {
	Verify(ctx context.Context, a payment.Assertion) (*model.Reservation, error)
}

// PaymentHandler serves POST /v1/payments/verify.  The route is not behind
// JWTAuth; the assertion signature is the credential.
type PaymentHandler struct {
	svc Verifier
}

func NewPaymentHandler(svc Verifier) *PaymentHandler {
	if svc == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{svc: svc}
}

// Verify confirms the reservation named in the assertion when the signature
// matches.  A mismatch answers 400 and leaves the reservation untouched.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var a payment.Assertion
	if err := bind(c, &a); err != nil {
		return fail(c, err)
	}
	r, err := h.svc.Verify(c.Request().Context(), a)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, r)
}
