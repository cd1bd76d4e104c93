package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/iliyamo/resource-rental/internal/apperr"
)

// Order is an order created at the gateway for a reservation's total.
type Order struct {
	ID           string `json:"order_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// Gateway creates orders at the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (Order, error)
}

// StripeGateway creates Stripe PaymentIntents as gateway orders.
type StripeGateway struct {
	client paymentintent.Client
}

// NewStripeGateway uses the default Stripe API backend.
func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend allows pointing the gateway at another backend
// (tests use an httptest server).
func NewStripeGatewayWithBackend(secretKey string, b stripe.Backend) *StripeGateway {
	return &StripeGateway{client: paymentintent.Client{B: b, Key: secretKey}}
}

// CreateOrder creates a PaymentIntent for amountCents.  reference is stored
// as metadata so the intent can be traced back to the reservation.
func (g *StripeGateway) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (Order, error) {
	if amountCents <= 0 {
		return Order{}, apperr.Validation("order amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	params.AddMetadata("reference", reference)

	pi, err := g.client.New(params)
	if err != nil {
		return Order{}, upstream(ctx, err)
	}
	return Order{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func upstream(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, err, "payment gateway timed out")
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return apperr.Wrap(apperr.KindUpstreamError, err, fmt.Sprintf("payment gateway rejected order (%d)", se.HTTPStatusCode))
	}
	return apperr.Wrap(apperr.KindUpstreamError, err, "payment gateway unavailable")
}
