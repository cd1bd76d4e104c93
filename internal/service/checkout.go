package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/availability"
	"github.com/iliyamo/resource-rental/internal/cache"
	"github.com/iliyamo/resource-rental/internal/lifecycle"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/policy"
	"github.com/iliyamo/resource-rental/internal/pricing"
)

// CheckoutService manages checkout staging sessions and promotes them into
// reservations.
type CheckoutService struct {
	engine
	cache cache.CheckoutCache // cache may be nil; every write to it is versioned
}

// NewCheckoutService builds the service.  A nil cache reads straight from
// the store.
func NewCheckoutService(store Store, c cache.CheckoutCache, o Options) *CheckoutService {
	return &CheckoutService{engine: newEngine(store, o), cache: c}
}

// ItemRequest is one line item as submitted by the requester.
type ItemRequest struct {
	ResourceID uint64    `json:"resource_id"`
	Quantity   int       `json:"quantity"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// CreateCheckoutRequest opens a staging session.
type CreateCheckoutRequest struct {
	RequesterName   string               `json:"requester_name"`
	Items           []ItemRequest        `json:"items"`
	DeliveryAddress *model.AddressFields `json:"delivery_address"`
	BillingAddress  *model.AddressFields `json:"billing_address"`
}

// Create validates and prices the items and stores an active session.
func (s *CheckoutService) Create(ctx context.Context, actor model.Actor, req CreateCheckoutRequest) (*model.CheckoutStaging, error) {
	if !s.policy.Allows(actor.Role, policy.OpCheckout) {
		return nil, apperr.New(apperr.KindForbidden, "%s may not stage checkouts", actor.Role)
	}
	if len(req.Items) == 0 {
		return nil, apperr.New(apperr.KindInvalidStaging, "at least one item is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.clock()
	seen := make(map[uint64]struct{}, len(req.Items))
	items := make([]model.LineItem, 0, len(req.Items))
	var pr model.Pricing
	for i, in := range req.Items {
		if in.ResourceID == 0 {
			return nil, apperr.New(apperr.KindInvalidStaging, "item %d: resource_id is required", i)
		}
		if _, dup := seen[in.ResourceID]; dup {
			return nil, apperr.New(apperr.KindInvalidStaging, "item %d: resource %d appears more than once", i, in.ResourceID)
		}
		seen[in.ResourceID] = struct{}{}
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, apperr.New(apperr.KindInvalidStaging, "item %d: quantity must be at least 1", i)
		}
		iv, err := model.NewInterval(in.Start, in.End)
		if err != nil {
			return nil, err
		}
		if iv.Start.Before(now) {
			return nil, apperr.Validation("item %d: start must not be in the past", i)
		}
		res, err := s.store.Resource(ctx, in.ResourceID)
		if err != nil {
			return nil, err
		}
		if !res.Bookable() {
			return nil, apperr.New(apperr.KindResourceUnavailable, "resource %d is not available for booking", res.ID)
		}
		if qty > res.QuantityAvailable {
			return nil, apperr.New(apperr.KindInvalidStaging, "item %d: quantity %d exceeds the %d units available", i, qty, res.QuantityAvailable)
		}
		sub, err := s.price(ctx, *res, iv, qty)
		if err != nil {
			return nil, err
		}
		items = append(items, model.LineItem{ResourceID: in.ResourceID, Quantity: qty, Interval: iv, SubtotalCents: sub})
		pr.SubtotalCents += sub
		pr.TaxCents += pricing.Tax(sub, s.taxBP)
	}
	pr.TotalCents = pr.SubtotalCents + pr.TaxCents
	pr.Currency = s.currency
	if pr.TotalCents < 0 {
		return nil, apperr.New(apperr.KindInvalidStaging, "pricing total must not be negative")
	}

	st := &model.CheckoutStaging{
		Token:          uuid.NewString(),
		RequesterID:    actor.ID,
		RequesterName:  strings.TrimSpace(req.RequesterName),
		RequesterEmail: actor.Email,
		Items:          items,
		Pricing:        pr,
		Status:         model.CheckoutActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	st.Apply(model.AddressPatch{Delivery: req.DeliveryAddress, Billing: req.BillingAddress})
	if err := s.store.CreateCheckout(ctx, st); err != nil {
		return nil, err
	}
	s.cacheSet(ctx, st)
	return st, nil
}

// checkAccess enforces that only the creating requester sees an active
// session.  Completed sessions are not resumable.
func checkAccess(actor model.Actor, st *model.CheckoutStaging, m policy.Matrix) error {
	id := st.RequesterID
	if err := m.Authorize(actor, policy.OpCheckout, policy.Subject{RequesterID: &id}); err != nil {
		return err
	}
	if st.Status != model.CheckoutActive {
		return apperr.New(apperr.KindNotFound, "checkout %s not found", st.Token)
	}
	return nil
}

// Get returns the actor's active session.
func (s *CheckoutService) Get(ctx context.Context, actor model.Actor, token string) (*model.CheckoutStaging, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	st, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(actor, st, s.policy); err != nil {
		return nil, err
	}
	return st, nil
}

// Update applies a whitelisted address patch to the actor's active session.
// The cache write-back happens after commit and carries the new version, so
// a completion committed in between is not overwritten.
func (s *CheckoutService) Update(ctx context.Context, actor model.Actor, token string, patch model.AddressPatch) (*model.CheckoutStaging, error) {
	if patch.Empty() {
		return nil, apperr.Validation("nothing to update")
	}
	var out *model.CheckoutStaging
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		st, err := tx.CheckoutForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if err := checkAccess(actor, st, s.policy); err != nil {
			return err
		}
		st.Apply(patch)
		st.UpdatedAt = s.clock()
		st.Version++
		if err := tx.SaveCheckout(ctx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, out)
	return out, nil
}

// Complete promotes the session into one pending reservation per line item.
// All resources are locked in ascending id order and every item is checked
// before anything is written; one conflicting item fails the whole
// completion and creates nothing.  Marking the session completed is the
// last write of the transaction, so a second call finds it gone.  The
// completed session replaces any cached copy as a tombstone.
func (s *CheckoutService) Complete(ctx context.Context, actor model.Actor, token string) ([]model.Reservation, error) {
	var (
		out     []model.Reservation
		entries []model.AuditEntry
		done    *model.CheckoutStaging
	)
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		st, err := tx.CheckoutForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if err := checkAccess(actor, st, s.policy); err != nil {
			return err
		}
		if len(st.Items) == 0 {
			return apperr.New(apperr.KindInvalidStaging, "checkout %s has no items", token)
		}

		ids := make([]uint64, 0, len(st.Items))
		for _, it := range st.Items {
			ids = append(ids, it.ResourceID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if _, err := tx.LockResource(ctx, id); err != nil {
				return err
			}
		}

		now := s.clock()
		var conflicts []ConflictDetail
		for _, it := range st.Items {
			result, err := availability.Check(ctx, tx, availability.Request{
				ResourceID: it.ResourceID,
				Interval:   it.Interval,
				Now:        now,
			})
			if err != nil {
				return err
			}
			if it.Quantity > result.Resource.QuantityAvailable {
				return apperr.Validation("resource %d: quantity %d exceeds the %d units available", it.ResourceID, it.Quantity, result.Resource.QuantityAvailable)
			}
			if !result.Available {
				conflicts = append(conflicts, ConflictDetail{ResourceID: it.ResourceID, ReservationIDs: result.ConflictIDs()})
			}
		}
		if len(conflicts) > 0 {
			return conflictError(conflicts)
		}

		requesterID := st.RequesterID
		tok := st.Token
		for _, it := range st.Items {
			r := model.Reservation{
				ResourceID:    it.ResourceID,
				Requester:     model.Requester{Name: st.RequesterName, Email: st.RequesterEmail, CustomerID: &requesterID},
				Interval:      it.Interval,
				Quantity:      it.Quantity,
				TotalCents:    it.SubtotalCents + pricing.Tax(it.SubtotalCents, s.taxBP),
				Status:        model.StatusPending,
				PaymentStatus: model.PaymentPending,
				CheckoutToken: &tok,
				CreatedBy:     actor.ID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.InsertReservation(ctx, &r); err != nil {
				return err
			}
			entry := lifecycle.Created(r, actor, "checkout "+tok)
			if err := tx.AppendAudit(ctx, &entry); err != nil {
				return err
			}
			out = append(out, r)
			entries = append(entries, entry)
		}

		st.Status = model.CheckoutCompleted
		st.UpdatedAt = now
		st.Version++
		st.ReservationIDs = make([]uint64, 0, len(out))
		for _, r := range out {
			st.ReservationIDs = append(st.ReservationIDs, r.ID)
		}
		done = st
		return tx.SaveCheckout(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	s.retire(ctx, done)
	for i := range out {
		s.publish(ctx, out[i], entries[i])
	}
	return out, nil
}

// load reads a session through the cache.  Cache failures fall back to the
// store.  Refilling the cache is safe against a completion racing this read:
// the refill carries the version read, which the tombstone outranks.
func (s *CheckoutService) load(ctx context.Context, token string) (*model.CheckoutStaging, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.New(apperr.KindNotFound, "checkout not found")
	}
	if s.cache != nil {
		st, err := s.cache.Get(ctx, token)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("checkout-cache: get %s: %v", token, err)
		}
	}
	st, err := s.store.Checkout(ctx, token)
	if err != nil {
		return nil, err
	}
	if st.Status == model.CheckoutActive {
		s.cacheSet(ctx, st)
	}
	return st, nil
}

func (s *CheckoutService) cacheSet(ctx context.Context, st *model.CheckoutStaging) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, st); err != nil {
		log.Printf("checkout-cache: set %s: %v", st.Token, err)
	}
}

// retire caches the completed session as a tombstone.  If that write fails
// the entry is dropped instead, leaving the store to answer.
func (s *CheckoutService) retire(ctx context.Context, st *model.CheckoutStaging) {
	if s.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	err := s.cache.Set(ctx, st)
	if err == nil {
		return
	}
	log.Printf("checkout-cache: tombstone %s: %v", st.Token, err)
	if err := s.cache.Delete(ctx, st.Token); err != nil {
		log.Printf("checkout-cache: delete %s: %v", st.Token, err)
	}
}
