// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

import (
	"time"

	"github.com/iliyamo/resource-rental/internal/model"
)

// ReservationEventsQueue is the durable queue carrying status changes.
const ReservationEventsQueue = "reservation.events"

// ReservationEvent is published after a reservation is created or changes
// status.  It carries enough information for downstream consumers to log or
// notify without querying the primary database.  From is empty for creation.
type ReservationEvent struct {
	ReservationID uint64       `json:"reservation_id"`
	ResourceID    uint64       `json:"resource_id"`
	From          model.Status `json:"from,omitempty"`
	To            model.Status `json:"to"`
	ActorID       uint64       `json:"actor_id"`
	ActorRole     model.Role   `json:"actor_role"`
	Note          string       `json:"note,omitempty"`
	TotalCents    int64        `json:"total_cents"`
	StartsAt      string       `json:"starts_at"`
	EndsAt        string       `json:"ends_at"`
	OccurredAt    string       `json:"occurred_at"`
}

// NewReservationEvent builds the event for an audit entry on r.
func NewReservationEvent(r model.Reservation, e model.AuditEntry) ReservationEvent {
	return ReservationEvent{
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		From:          e.From,
		To:            e.To,
		ActorID:       e.ActorID,
		ActorRole:     e.ActorRole,
		Note:          e.Note,
		TotalCents:    r.TotalCents,
		StartsAt:      r.Interval.Start.UTC().Format(time.RFC3339),
		EndsAt:        r.Interval.End.UTC().Format(time.RFC3339),
		OccurredAt:    e.At.UTC().Format(time.RFC3339),
	}
}
