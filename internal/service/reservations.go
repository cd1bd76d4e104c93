package service

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/availability"
	"github.com/iliyamo/resource-rental/internal/lifecycle"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/policy"
	"github.com/iliyamo/resource-rental/internal/pricing"
)

// ReservationService creates, reads and transitions reservations.
type ReservationService struct {
	engine
}

// NewReservationService panics on a nil store, matching how the handlers
// treat missing dependencies.
func NewReservationService(store Store, o Options) *ReservationService {
	return &ReservationService{engine: newEngine(store, o)}
}

// CreateRequest is a direct reservation bypassing checkout staging.
// Requesters book for themselves; owners record a quotation for the named
// requester, optionally linked to a customer account.
type CreateRequest struct {
	ResourceID     uint64
	Start          time.Time
	End            time.Time
	Quantity       int
	RequesterName  string
	RequesterEmail string
	CustomerID     *uint64
	Note           string
}

// Create checks availability and inserts the reservation in one
// transaction holding the resource lock.
func (s *ReservationService) Create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Reservation, error) {
	if !s.policy.Allows(actor.Role, policy.OpCreate) {
		return nil, apperr.New(apperr.KindForbidden, "%s may not create reservations", actor.Role)
	}
	status, err := lifecycle.InitialStatus(actor.Role)
	if err != nil {
		return nil, err
	}
	iv, err := model.NewInterval(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if req.ResourceID == 0 {
		return nil, apperr.Validation("resource_id is required")
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	requester, err := requesterFor(actor, req)
	if err != nil {
		return nil, err
	}

	var out model.Reservation
	var created model.AuditEntry
	err = s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		res, err := tx.LockResource(ctx, req.ResourceID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OpCreate, policy.Subject{ResourceOwnerID: res.OwnerID}); err != nil {
			return err
		}
		now := s.clock()
		result, err := availability.Check(ctx, tx, availability.Request{
			ResourceID: req.ResourceID,
			Interval:   iv,
			Now:        now,
		})
		if err != nil {
			return err
		}
		if qty > result.Resource.QuantityAvailable {
			return apperr.Validation("quantity %d exceeds the %d units available", qty, result.Resource.QuantityAvailable)
		}
		if !result.Available {
			return conflictError([]ConflictDetail{{ResourceID: req.ResourceID, ReservationIDs: result.ConflictIDs()}})
		}
		subtotal, err := s.price(ctx, result.Resource, iv, qty)
		if err != nil {
			return err
		}
		out = model.Reservation{
			ResourceID:    req.ResourceID,
			Requester:     requester,
			Interval:      iv,
			Quantity:      qty,
			TotalCents:    subtotal + pricing.Tax(subtotal, s.taxBP),
			Status:        status,
			PaymentStatus: model.PaymentPending,
			CreatedBy:     actor.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertReservation(ctx, &out); err != nil {
			return err
		}
		created = lifecycle.Created(out, actor, req.Note)
		return tx.AppendAudit(ctx, &created)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, out, created)
	return &out, nil
}

func requesterFor(actor model.Actor, req CreateRequest) (model.Requester, error) {
	name := strings.TrimSpace(req.RequesterName)
	email := strings.TrimSpace(req.RequesterEmail)
	switch actor.Role {
	case model.RoleRequester:
		id := actor.ID
		if actor.Email != "" {
			email = actor.Email
		}
		if email == "" {
			return model.Requester{}, apperr.Validation("requester_email is required")
		}
		return model.Requester{Name: name, Email: email, CustomerID: &id}, nil
	default:
		if name == "" || email == "" {
			return model.Requester{}, apperr.Validation("requester_name and requester_email are required")
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return model.Requester{}, apperr.Validation("requester_email is not a valid address")
		}
		return model.Requester{Name: name, Email: email, CustomerID: req.CustomerID}, nil
	}
}

// authorizeRead loads a reservation and checks actor may read it.
func (s *ReservationService) authorizeRead(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	r, err := s.store.Reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.resourceOwner(ctx, r.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.OpRead, policy.ReservationSubject(*r, owner)); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns one reservation the actor may read.
func (s *ReservationService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.authorizeRead(ctx, actor, id)
}

// History returns the audit trail of a reservation, oldest first.
func (s *ReservationService) History(ctx context.Context, actor model.Actor, id uint64) ([]model.AuditEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.authorizeRead(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// List returns one page of reservations scoped to what actor may see:
// requesters see their own, owners see those on resources they own.
func (s *ReservationService) List(ctx context.Context, actor model.Actor, f model.ReservationFilter) (*model.ReservationPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}
	switch s.policy.Scope(actor.Role, policy.OpList) {
	case policy.Own:
		f.RequesterID = actor.ID
		f.RequesterEmail = actor.Email
		f.OwnerID = 0
	case policy.OwnedResource:
		f.OwnerID = actor.ID
		f.RequesterEmail = ""
	case policy.Any:
	default:
		return nil, apperr.New(apperr.KindForbidden, "%s may not list reservations", actor.Role)
	}
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return &model.ReservationPage{Items: items, Page: f.Page, PageSize: f.PageSize, Total: total}, nil
}

// Transition moves a reservation to status to.  The row is locked, the
// actor authorized against it, the state machine applied and the status
// change persisted together with its audit entry.
func (s *ReservationService) Transition(ctx context.Context, actor model.Actor, id uint64, to model.Status, note string) (*model.Reservation, error) {
	var out model.Reservation
	var entry model.AuditEntry
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		res, err := tx.Resource(ctx, r.ResourceID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OpTransition, policy.ReservationSubject(*r, res.OwnerID)); err != nil {
			return err
		}
		entry, err = s.machine.Transition(r, actor, to, note, s.clock())
		if err != nil {
			return err
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &entry); err != nil {
			return err
		}
		out = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, out, entry)
	return &out, nil
}

// MarkOverdue moves delivered reservations whose end has passed to late on
// behalf of the system.  It returns how many were moved.  Reservations that
// changed status concurrently are skipped.
func (s *ReservationService) MarkOverdue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = maxPageSize
	}
	now := s.clock()
	lookup, cancel := s.withTimeout(ctx)
	ids, err := s.store.OverdueReservations(lookup, now, limit)
	cancel()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		_, err := s.Transition(ctx, model.SystemActor, id, model.StatusLate, "end passed without return")
		switch {
		case err == nil:
			moved++
		case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrNoOpTransition):
			// returned or cancelled since the lookup
		default:
			log.Printf("overdue: reservation %d: %v", id, err)
		}
	}
	return moved, nil
}

// Availability is the public answer for one resource and interval.  Busy
// lists the overlapping blocking intervals without requester data.
type Availability struct {
	ResourceID uint64           `json:"resource_id"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Available  bool             `json:"available"`
	Busy       []model.Interval `json:"busy"`
}

// Availability runs the checker for an interval without reserving it.  It
// reads outside any transaction and takes no row locks, so anonymous
// traffic never queues behind or in front of bookings.  The answer is
// advisory; Create and Complete check again under the resource lock.
func (s *ReservationService) Availability(ctx context.Context, resourceID uint64, start, end time.Time) (*Availability, error) {
	iv, err := model.NewInterval(start, end)
	if err != nil {
		return nil, err
	}
	if resourceID == 0 {
		return nil, apperr.Validation("resource id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := availability.Check(ctx, s.store, availability.Request{
		ResourceID: resourceID,
		Interval:   iv,
		Now:        s.clock(),
	})
	if err != nil {
		return nil, err
	}
	out := &Availability{ResourceID: resourceID, Start: iv.Start, End: iv.End, Available: result.Available, Busy: []model.Interval{}}
	for _, c := range result.Conflicts {
		out.Busy = append(out.Busy, c.Interval)
	}
	return out, nil
}
