// Package lifecycle owns the reservation state machine.  Allowed
// transitions are declared once in Rules; Transition is the only code path
// that changes a reservation's status.
package lifecycle

import (
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// Guard checks a transition precondition that depends on the reservation
// or the clock.
type Guard func(r model.Reservation, now time.Time) error

// Rule is one allowed edge of the state machine.
type Rule struct {
	From   model.Status
	To     model.Status
	Actors []model.Role
	Guard  Guard
}

func (r Rule) allows(role model.Role) bool {
	for _, a := range r.Actors {
		if a == role {
			return true
		}
	}
	return false
}

// pastEnd requires the rental period to be over.
func pastEnd(r model.Reservation, now time.Time) error {
	if !now.After(r.Interval.End) {
		return apperr.New(apperr.KindInvalidTransition, "reservation %d is not past its end time", r.ID)
	}
	return nil
}

var (
	owner        = model.RoleOwner
	requester    = model.RoleRequester
	system       = model.RoleSystem
	ownerOnly    = []model.Role{owner}
	ownerSystem  = []model.Role{owner, system}
	ownerRequest = []model.Role{owner, requester}
)

// Rules is the transition table.  Anything not listed is invalid.
var Rules = []Rule{
	{From: model.StatusPending, To: model.StatusConfirmed, Actors: ownerSystem},
	{From: model.StatusPending, To: model.StatusCancelled, Actors: ownerRequest},
	{From: model.StatusConfirmed, To: model.StatusDelivered, Actors: ownerOnly},
	{From: model.StatusConfirmed, To: model.StatusCancelled, Actors: ownerOnly},
	{From: model.StatusDelivered, To: model.StatusReturned, Actors: ownerOnly},
	{From: model.StatusDelivered, To: model.StatusLate, Actors: ownerSystem, Guard: pastEnd},
	{From: model.StatusDelivered, To: model.StatusCancelled, Actors: ownerOnly},
	{From: model.StatusLate, To: model.StatusReturned, Actors: ownerOnly},
}

// Machine applies a transition table.
type Machine struct {
	rules map[model.Status]map[model.Status]Rule
}

// New indexes rules into a Machine.
func New(rules []Rule) *Machine {
	m := &Machine{rules: make(map[model.Status]map[model.Status]Rule)}
	for _, r := range rules {
		if m.rules[r.From] == nil {
			m.rules[r.From] = make(map[model.Status]Rule)
		}
		m.rules[r.From][r.To] = r
	}
	return m
}

// Default is the machine built from Rules.
var Default = New(Rules)

// Rule looks up the edge from -> to.
func (m *Machine) Rule(from, to model.Status) (Rule, bool) {
	r, ok := m.rules[from][to]
	return r, ok
}

// Targets lists the statuses reachable from s by any actor.
func (m *Machine) Targets(s model.Status) []model.Status {
	out := make([]model.Status, 0, len(m.rules[s]))
	for _, st := range model.AllStatuses {
		if _, ok := m.rules[s][st]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Transition moves r to status to on behalf of actor.  On success r is
// mutated and the audit entry to append is returned.  Ownership of the
// reservation is the caller's concern (see package policy); this checks only
// that the actor's role may drive the edge.
func (m *Machine) Transition(r *model.Reservation, actor model.Actor, to model.Status, note string, now time.Time) (model.AuditEntry, error) {
	if !to.Valid() {
		return model.AuditEntry{}, apperr.Validation("unknown status %q", to)
	}
	from := r.Status
	if from == to {
		return model.AuditEntry{}, apperr.New(apperr.KindNoOpTransition, "reservation %d is already %s", r.ID, to)
	}
	rule, ok := m.Rule(from, to)
	if !ok {
		return model.AuditEntry{}, apperr.New(apperr.KindInvalidTransition, "cannot move reservation from %s to %s", from, to)
	}
	if !rule.allows(actor.Role) {
		return model.AuditEntry{}, apperr.New(apperr.KindForbidden, "%s may not move reservation from %s to %s", actor.Role, from, to)
	}
	if rule.Guard != nil {
		if err := rule.Guard(*r, now); err != nil {
			return model.AuditEntry{}, err
		}
	}
	now = now.UTC()
	r.Status = to
	r.UpdatedAt = now
	return model.AuditEntry{
		ReservationID: r.ID,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		From:          from,
		To:            to,
		Note:          note,
		At:            now,
	}, nil
}

// Transition applies the default machine.
func Transition(r *model.Reservation, actor model.Actor, to model.Status, note string, now time.Time) (model.AuditEntry, error) {
	return Default.Transition(r, actor, to, note, now)
}

// InitialStatus returns the status a new reservation starts in for the
// creating role: owners record quotations, requesters book pending.
func InitialStatus(role model.Role) (model.Status, error) {
	switch role {
	case model.RoleRequester:
		return model.StatusPending, nil
	case model.RoleOwner:
		return model.StatusQuotation, nil
	}
	return "", apperr.New(apperr.KindForbidden, "%s may not create reservations", role)
}

// Created returns the audit entry for a newly inserted reservation.
func Created(r model.Reservation, actor model.Actor, note string) model.AuditEntry {
	return model.AuditEntry{
		ReservationID: r.ID,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		To:            r.Status,
		Note:          note,
		At:            r.CreatedAt,
	}
}
