// Package availability decides whether a candidate interval on a resource
// is free of blocking reservations.  The checker is a pure read; callers
// run it inside the transaction that holds the resource lock so that the
// check and the following insert are atomic.
package availability

import (
	"context"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// Source supplies the data the checker reads.  The store's transaction type
// implements it so the scan runs under the caller's lock.
type Source interface {
	Resource(ctx context.Context, id uint64) (*model.Resource, error)
	BlockingReservations(ctx context.Context, resourceID uint64) ([]model.Reservation, error)
}

// Request is one availability question.
type Request struct {
	ResourceID           uint64
	Interval             model.Interval
	ExcludeReservationID uint64
	Now                  time.Time
	// AllowPast skips the "start not before now" rule, for rescheduling
	// existing reservations.
	AllowPast bool
}

// Result is the checker's answer.  Conflicts holds every blocking
// reservation that overlaps the candidate.
type Result struct {
	Resource  model.Resource      `json:"-"`
	Available bool                `json:"available"`
	Conflicts []model.Reservation `json:"conflicts,omitempty"`
}

// ConflictIDs returns the ids of the conflicting reservations.
func (r Result) ConflictIDs() []uint64 {
	ids := make([]uint64, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		ids = append(ids, c.ID)
	}
	return ids
}

// Check answers req against src.  Resource existence and bookability fail
// fast before the overlap scan.
func Check(ctx context.Context, src Source, req Request) (Result, error) {
	if !req.Interval.Valid() {
		return Result{}, apperr.ErrInvalidRange
	}
	res, err := src.Resource(ctx, req.ResourceID)
	if err != nil {
		return Result{}, err
	}
	if !res.Bookable() {
		return Result{}, apperr.New(apperr.KindResourceUnavailable, "resource %d is not available for booking", res.ID)
	}
	if !req.AllowPast && req.Interval.Start.Before(req.Now) {
		return Result{}, apperr.Validation("start must not be in the past")
	}
	existing, err := src.BlockingReservations(ctx, req.ResourceID)
	if err != nil {
		return Result{}, err
	}
	out := Result{Resource: *res, Available: true}
	for _, r := range existing {
		if r.ID != 0 && r.ID == req.ExcludeReservationID {
			continue
		}
		if !r.Status.Blocking() {
			continue
		}
		if model.Overlaps(r.Interval, req.Interval) {
			out.Conflicts = append(out.Conflicts, r)
		}
	}
	out.Available = len(out.Conflicts) == 0
	return out, nil
}
