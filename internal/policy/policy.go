// Package policy holds the capability matrix deciding which actor may do
// what to a reservation.  The matrix is plain data so a change in who may
// do what never touches the handlers or the state machine.
package policy

import (
	"strings"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// Operation is an action on a reservation or staging session.
type Operation string

const (
	OpRead       Operation = "read"
	OpList       Operation = "list"
	OpCreate     Operation = "create"
	OpTransition Operation = "transition"
	OpCheckout   Operation = "checkout"
	OpPay        Operation = "pay"
)

// Scope says which subjects an allowed operation applies to.
type Scope int

const (
	Deny          Scope = iota
	Own                 // subject's requester is the actor
	OwnedResource       // subject's resource belongs to the actor
	Any
)

// Matrix maps role and operation to scope.  Missing entries deny.
type Matrix map[model.Role]map[Operation]Scope

// Default is the policy in force.
var Default = Matrix{
	model.RoleRequester: {
		OpRead:       Own,
		OpList:       Own,
		OpCreate:     Any,
		OpTransition: Own,
		OpCheckout:   Own,
		OpPay:        Own,
	},
	model.RoleOwner: {
		OpRead:       OwnedResource,
		OpList:       OwnedResource,
		OpCreate:     OwnedResource,
		OpTransition: OwnedResource,
	},
	model.RoleSystem: {
		OpRead:       Any,
		OpList:       Any,
		OpTransition: Any,
	},
}

// Subject describes the object an operation targets.
type Subject struct {
	RequesterID     *uint64
	RequesterEmail  string
	ResourceOwnerID uint64
}

// ReservationSubject builds a Subject from a reservation and its resource owner.
func ReservationSubject(r model.Reservation, ownerID uint64) Subject {
	return Subject{
		RequesterID:     r.Requester.CustomerID,
		RequesterEmail:  r.Requester.Email,
		ResourceOwnerID: ownerID,
	}
}

// Scope returns the scope granted to role for op.
func (m Matrix) Scope(role model.Role, op Operation) Scope {
	ops, ok := m[role]
	if !ok {
		return Deny
	}
	return ops[op]
}

// Authorize returns apperr.ErrForbidden unless actor may perform op on s.
func (m Matrix) Authorize(actor model.Actor, op Operation, s Subject) error {
	switch m.Scope(actor.Role, op) {
	case Any:
		return nil
	case Own:
		if isRequester(actor, s) {
			return nil
		}
	case OwnedResource:
		if actor.ID != 0 && s.ResourceOwnerID == actor.ID {
			return nil
		}
	}
	return apperr.New(apperr.KindForbidden, "%s not permitted for %s", op, strings.ToLower(string(actor.Role)))
}

// Allows reports whether role has any grant for op.  Used before a subject
// is known, for example to reject a list call outright.
func (m Matrix) Allows(role model.Role, op Operation) bool {
	return m.Scope(role, op) != Deny
}

// Authorize applies the default matrix.
func Authorize(actor model.Actor, op Operation, s Subject) error {
	return Default.Authorize(actor, op, s)
}

// isRequester matches on the account id, falling back to the e-mail for
// owner-made quotations that carry no account reference.
func isRequester(actor model.Actor, s Subject) bool {
	if s.RequesterID != nil {
		return actor.ID != 0 && *s.RequesterID == actor.ID
	}
	return actor.Email != "" && strings.EqualFold(actor.Email, s.RequesterEmail)
}
