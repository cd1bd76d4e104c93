package model

import "strings"

// Resource is a rentable item in the catalog.  Owners maintain it through
// the catalog endpoints; the reservation engine reads and locks it.
//
// Fields:
//
//	ID                – resources.id
//	OwnerID           – user who lists the resource
//	Name              – display name
//	Available         – owner-controlled switch; false admits no new reservations
//	QuantityAvailable – units on hand; zero admits no new reservations
//	HourlyRateCents   – rate tier used for bookings shorter than a day
//	DailyRateCents    – rate tier used for bookings of a day or longer
type Resource struct {
	ID                uint64 `json:"id"`
	OwnerID           uint64 `json:"owner_id"`
	Name              string `json:"name"`
	Available         bool   `json:"availability"`
	QuantityAvailable int    `json:"quantity_available"`
	HourlyRateCents   int64  `json:"hourly_rate_cents"`
	DailyRateCents    int64  `json:"daily_rate_cents"`
}

// Bookable reports whether the resource admits new reservations at all.
func (r Resource) Bookable() bool {
	return r.Available && r.QuantityAvailable > 0
}

// Problem returns a description of the first invalid field, or "".
func (r Resource) Problem() string {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return "name is required"
	case r.QuantityAvailable < 0:
		return "quantity_available must not be negative"
	case r.HourlyRateCents < 0 || r.DailyRateCents < 0:
		return "rates must not be negative"
	}
	return ""
}

// ResourcePatch changes selected catalog fields; nil leaves a field as is.
type ResourcePatch struct {
	Name              *string `json:"name"`
	Available         *bool   `json:"availability"`
	QuantityAvailable *int    `json:"quantity_available"`
	HourlyRateCents   *int64  `json:"hourly_rate_cents"`
	DailyRateCents    *int64  `json:"daily_rate_cents"`
}

// Empty reports whether the patch changes nothing.
func (p ResourcePatch) Empty() bool {
	return p.Name == nil && p.Available == nil && p.QuantityAvailable == nil &&
		p.HourlyRateCents == nil && p.DailyRateCents == nil
}

// Apply writes the set fields onto r.
func (p ResourcePatch) Apply(r *Resource) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Available != nil {
		r.Available = *p.Available
	}
	if p.QuantityAvailable != nil {
		r.QuantityAvailable = *p.QuantityAvailable
	}
	if p.HourlyRateCents != nil {
		r.HourlyRateCents = *p.HourlyRateCents
	}
	if p.DailyRateCents != nil {
		r.DailyRateCents = *p.DailyRateCents
	}
}
