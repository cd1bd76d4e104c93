package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/payment"
	"github.com/iliyamo/resource-rental/internal/policy"
)

const defaultGatewayTimeout = 10 * time.Second

// PaymentService links reservations to gateway orders and confirms them
// once a signed payment assertion is verified.
type PaymentService struct {
	engine
	gate           *payment.Gate
	gateway        payment.Gateway
	gatewayTimeout time.Duration
}

// NewPaymentService builds the service.  gateway may be nil when no
// provider is configured; CreateOrder then fails with an upstream error.
func NewPaymentService(store Store, gate *payment.Gate, gateway payment.Gateway, gatewayTimeout time.Duration, o Options) *PaymentService {
	if gate == nil {
		panic("service: nil payment gate")
	}
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return &PaymentService{engine: newEngine(store, o), gate: gate, gateway: gateway, gatewayTimeout: gatewayTimeout}
}

// CreateOrder opens a gateway order for the total of the actor's pending
// reservation and records its id on the reservation.
func (s *PaymentService) CreateOrder(ctx context.Context, actor model.Actor, reservationID uint64) (*payment.Order, error) {
	if s.gateway == nil {
		return nil, apperr.New(apperr.KindUpstreamError, "payment gateway is not configured")
	}
	readCtx, cancel := s.withTimeout(ctx)
	r, err := s.store.Reservation(readCtx, reservationID)
	if err == nil {
		var owner uint64
		owner, err = s.resourceOwner(readCtx, r.ResourceID)
		if err == nil {
			err = s.policy.Authorize(actor, policy.OpPay, policy.ReservationSubject(*r, owner))
		}
	}
	cancel()
	if err != nil {
		return nil, err
	}
	if r.Status != model.StatusPending {
		return nil, apperr.New(apperr.KindInvalidTransition, "reservation %d is %s, only pending reservations can be paid", r.ID, r.Status)
	}

	gwCtx, gwCancel := context.WithTimeout(ctx, s.gatewayTimeout)
	order, err := s.gateway.CreateOrder(gwCtx, r.TotalCents, s.currency, fmt.Sprintf("reservation:%d", r.ID))
	gwCancel()
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if locked.Status != model.StatusPending {
			return apperr.New(apperr.KindInvalidTransition, "reservation %d is %s, only pending reservations can be paid", locked.ID, locked.Status)
		}
		id := order.ID
		locked.GatewayOrderID = &id
		locked.UpdatedAt = s.clock()
		return tx.UpdateReservation(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Verify checks a payment assertion and confirms the reservation it names.
// The signature is checked before anything is read, so an unsigned caller
// learns nothing about reservations.  A mismatch leaves the reservation
// untouched.  Redelivery of an assertion that was already applied returns
// the reservation unchanged.
func (s *PaymentService) Verify(ctx context.Context, a payment.Assertion) (*model.Reservation, error) {
	if a.ReservationID == 0 {
		return nil, apperr.Validation("reservation_id is required")
	}
	if err := s.gate.VerifyAssertion(a); err != nil {
		return nil, err
	}

	var (
		out     model.Reservation
		entry   model.AuditEntry
		changed bool
	)
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.ReservationForUpdate(ctx, a.ReservationID)
		if err != nil {
			return err
		}
		if r.GatewayOrderID == nil || *r.GatewayOrderID != a.OrderID {
			return apperr.New(apperr.KindSignatureMismatch, "order %s does not belong to reservation %d", a.OrderID, r.ID)
		}
		if r.PaymentStatus == model.PaymentPaid && r.GatewayPaymentID != nil && *r.GatewayPaymentID == a.PaymentID {
			out = *r
			return nil
		}
		entry, err = s.machine.Transition(r, model.SystemActor, model.StatusConfirmed, "payment "+a.PaymentID, s.clock())
		if err != nil {
			return err
		}
		pid := a.PaymentID
		r.PaymentStatus = model.PaymentPaid
		r.GatewayPaymentID = &pid
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &entry); err != nil {
			return err
		}
		out = *r
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, out, entry)
	}
	return &out, nil
}
