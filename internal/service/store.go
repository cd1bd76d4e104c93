// Package service orchestrates the reservation engine: it threads the
// caller's Actor through the policy, the state machine and the availability
// checker, and runs every check-and-write sequence inside one store
// transaction that holds the per-resource lock.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/queue"
)

// Tx is a store transaction.  Reads made through it observe rows locked by
// it; Resource and BlockingReservations satisfy availability.Source.
type Tx interface {
	// LockResource takes the per-resource lock held until commit or
	// rollback.  It fails with ResourceNotFound for unknown ids.
	LockResource(ctx context.Context, id uint64) (*model.Resource, error)
	Resource(ctx context.Context, id uint64) (*model.Resource, error)
	BlockingReservations(ctx context.Context, resourceID uint64) ([]model.Reservation, error)

	InsertReservation(ctx context.Context, r *model.Reservation) error
	ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	AppendAudit(ctx context.Context, e *model.AuditEntry) error

	CheckoutForUpdate(ctx context.Context, token string) (*model.CheckoutStaging, error)
	SaveCheckout(ctx context.Context, s *model.CheckoutStaging) error

	Commit() error
	Rollback() error
}

// Store is the transactional store behind the engine.  Lookups of missing
// rows fail with apperr.ErrNotFound (apperr.ErrResourceNotFound for
// resources).  Resource and BlockingReservations make it an
// availability.Source for read-only queries.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	Resource(ctx context.Context, id uint64) (*model.Resource, error)
	// BlockingReservations is a plain read outside any transaction.  It
	// takes no locks and is only fit for answers that reserve nothing.
	BlockingReservations(ctx context.Context, resourceID uint64) ([]model.Reservation, error)
	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error)
	History(ctx context.Context, reservationID uint64) ([]model.AuditEntry, error)
	// OverdueReservations returns ids of delivered reservations whose end
	// is before now.
	OverdueReservations(ctx context.Context, now time.Time, limit int) ([]uint64, error)

	CreateCheckout(ctx context.Context, s *model.CheckoutStaging) error
	Checkout(ctx context.Context, token string) (*model.CheckoutStaging, error)
}

// Publisher delivers reservation events.  Publishing happens after commit;
// a failure is logged and never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
