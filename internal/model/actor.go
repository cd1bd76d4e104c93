package model

// Role names match the "role" claim carried by access tokens.  SYSTEM is
// never issued to a client; it identifies work done by the engine itself
// (payment confirmation, overdue evaluation).
type Role string

const (
	RoleRequester Role = "CUSTOMER"
	RoleOwner     Role = "OWNER"
	RoleSystem    Role = "SYSTEM"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleOwner, RoleSystem:
		return true
	}
	return false
}

// Actor is the identity on whose behalf a core operation runs.  It is passed
// explicitly into every service call.
type Actor struct {
	ID    uint64 `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// SystemActor is used for transitions driven by the engine.
var SystemActor = Actor{ID: 0, Role: RoleSystem}
