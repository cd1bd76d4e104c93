package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/lifecycle"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/policy"
	"github.com/iliyamo/resource-rental/internal/pricing"
	"github.com/iliyamo/resource-rental/internal/queue"
)

const (
	defaultStoreTimeout = 5 * time.Second
	publishTimeout      = 5 * time.Second
	defaultPageSize     = 20
	maxPageSize         = 100
)

// Options carries the collaborators shared by the services.  Zero values
// fall back to the defaults noted per field.
type Options struct {
	Publisher      Publisher          // nil disables events
	Pricer         pricing.Pricer     // default pricing.RateCard
	Policy         policy.Matrix      // default policy.Default
	Machine        *lifecycle.Machine // default lifecycle.Default
	Now            func() time.Time   // default time.Now
	StoreTimeout   time.Duration      // default 5s
	TaxBasisPoints int
	Currency       string // default "usd"
}

// engine is embedded by every service.  It owns the transaction helper and
// the post-commit side effects; the services own the decisions.
type engine struct {
	store        Store              // store is the transactional source of truth
	events       Publisher          // events may be nil
	pricer       pricing.Pricer     // pricer quotes one line item
	policy       policy.Matrix      // policy decides who may do what
	machine      *lifecycle.Machine // machine holds the transition table
	now          func() time.Time   // now is read through clock, always UTC
	storeTimeout time.Duration      // storeTimeout bounds each store call or transaction
	taxBP        int                // taxBP is tax in basis points of the subtotal
	currency     string             // currency is the lower-case ISO code sent to the gateway
}

func newEngine(store Store, o Options) engine {
	if store == nil {
		panic("service: nil store")
	}
	e := engine{
		store:        store,
		events:       o.Publisher,
		pricer:       o.Pricer,
		policy:       o.Policy,
		machine:      o.Machine,
		now:          o.Now,
		storeTimeout: o.StoreTimeout,
		taxBP:        o.TaxBasisPoints,
		currency:     o.Currency,
	}
	if e.pricer == nil {
		e.pricer = pricing.RateCard{}
	}
	if e.policy == nil {
		e.policy = policy.Default
	}
	if e.machine == nil {
		e.machine = lifecycle.Default
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = defaultStoreTimeout
	}
	if e.currency == "" {
		e.currency = "usd"
	}
	return e
}

func (e *engine) clock() time.Time { return e.now().UTC() }

// withTimeout bounds a store call by the configured store timeout.
func (e *engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}

// inTx runs fn in a transaction.  The transaction is rolled back unless fn
// returns nil and the commit succeeds, so a cancelled request never leaves
// a partial change behind.
func (e *engine) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// resourceOwner resolves the owner of a reservation's resource for policy
// checks.
func (e *engine) resourceOwner(ctx context.Context, resourceID uint64) (uint64, error) {
	res, err := e.store.Resource(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return res.OwnerID, nil
}

// publish sends one event per audit entry.  It runs after commit with its
// own deadline so a finished request does not cancel it.
func (e *engine) publish(ctx context.Context, r model.Reservation, entries ...model.AuditEntry) {
	if e.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, entry := range entries {
		if err := e.events.Publish(ctx, queue.NewReservationEvent(r, entry)); err != nil {
			log.Printf("reservation-events: publish reservation %d %s->%s failed: %v", r.ID, entry.From, entry.To, err)
		}
	}
}

// price asks the pricing collaborator for one line item.  Failures that do
// not already carry a kind are collaborator failures.
func (e *engine) price(ctx context.Context, res model.Resource, iv model.Interval, qty int) (int64, error) {
	amount, err := e.pricer.Price(ctx, res, iv, qty)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return 0, apperr.Wrap(apperr.KindUpstreamError, err, "pricing failed")
		}
		return 0, err
	}
	if amount < 0 {
		return 0, apperr.New(apperr.KindUpstreamError, "pricing returned a negative amount for resource %d", res.ID)
	}
	return amount, nil
}

// ConflictDetail lists the reservations blocking one resource.
type ConflictDetail struct {
	ResourceID     uint64   `json:"resource_id"`
	ReservationIDs []uint64 `json:"conflicting_reservation_ids"`
}

func conflictError(details []ConflictDetail) error {
	if len(details) == 1 {
		return apperr.New(apperr.KindConflict, "resource %d is already reserved in that interval", details[0].ResourceID).
			WithDetails(details)
	}
	return apperr.New(apperr.KindConflict, "%d items are already reserved in their intervals", len(details)).
		WithDetails(details)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
