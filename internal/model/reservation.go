package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusQuotation Status = "quotation"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusReturned  Status = "returned"
	StatusLate      Status = "late"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusQuotation, StatusPending, StatusConfirmed, StatusDelivered,
	StatusReturned, StatusLate, StatusCancelled,
}

// BlockingStatuses are the statuses that count against availability.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed, StatusDelivered}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Blocking reports whether a reservation in status s occupies its interval.
func (s Status) Blocking() bool {
	for _, v := range BlockingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// PaymentStatus tracks money movement independently of the lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Requester identifies who the reservation is for.  CustomerID is nil when
// an owner records a quotation for someone without an account.
type Requester struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	CustomerID *uint64 `json:"customer_id,omitempty"`
}

// Reservation is a time-bounded claim on a resource.  It is never deleted;
// cancellation is a terminal status and the audit trail is kept.
//
// Fields:
//
//	ID               – reservations.id
//	ResourceID       – reserved resource
//	Requester        – requester_name / requester_email / customer_id
//	Interval         – starts_at / ends_at, half-open
//	TotalCents       – total price, non-negative
//	Status           – lifecycle state
//	PaymentStatus    – pending, partial, paid or refunded
//	GatewayOrderID   – order created at the payment gateway (nullable)
//	GatewayPaymentID – payment reported by a verified assertion (nullable)
//	CheckoutToken    – staging session that produced the reservation (nullable)
//	CreatedBy        – actor that created the row
type Reservation struct {
	ID               uint64        `json:"id"`
	ResourceID       uint64        `json:"resource_id"`
	Requester        Requester     `json:"requester"`
	Interval         Interval      `json:"interval"`
	Quantity         int           `json:"quantity"`
	TotalCents       int64         `json:"total_cents"`
	Status           Status        `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	GatewayOrderID   *string       `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty"`
	CheckoutToken    *string       `json:"checkout_token,omitempty"`
	CreatedBy        uint64        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// AuditEntry records one status transition.  Entries are append-only.
// From is empty for the creation entry.
type AuditEntry struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	ActorID       uint64    `json:"actor_id"`
	ActorRole     Role      `json:"actor_role"`
	From          Status    `json:"from,omitempty"`
	To            Status    `json:"to"`
	Note          string    `json:"note,omitempty"`
	At            time.Time `json:"at"`
}

// ReservationFilter narrows list queries.  Zero values mean "any".
// OwnerID and RequesterID are filled in by the service from the caller's
// scope, never taken verbatim from a requester.
type ReservationFilter struct {
	Status         Status
	ResourceID     uint64
	RequesterID    uint64
	RequesterEmail string
	OwnerID        uint64
	Page           int
	PageSize       int
}

// ReservationPage is one page of a list query.
type ReservationPage struct {
	Items    []Reservation `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}
