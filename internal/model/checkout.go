package model

import (
	"strings"
	"time"
)

// CheckoutStatus is the state of a staging session.
type CheckoutStatus string

const (
	CheckoutActive    CheckoutStatus = "active"
	CheckoutCompleted CheckoutStatus = "completed"
)

// LineItem is one intended reservation inside a staging session.
type LineItem struct {
	ResourceID    uint64   `json:"resource_id"`
	Quantity      int      `json:"quantity"`
	Interval      Interval `json:"interval"`
	SubtotalCents int64    `json:"subtotal_cents"`
}

// Pricing is the aggregate breakdown of a staging session.
type Pricing struct {
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
}

// Address is a postal address attached to a staging session.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// AddressFields is the whitelist of patchable address fields.  A nil pointer
// leaves the current value untouched; an empty string clears it.
type AddressFields struct {
	Line1      *string `json:"line1"`
	Line2      *string `json:"line2"`
	City       *string `json:"city"`
	Region     *string `json:"region"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
	Phone      *string `json:"phone"`
}

// Empty reports whether no field is set.
func (f AddressFields) Empty() bool {
	return f.Line1 == nil && f.Line2 == nil && f.City == nil && f.Region == nil &&
		f.PostalCode == nil && f.Country == nil && f.Phone == nil
}

// AddressPatch updates delivery and/or billing address.
type AddressPatch struct {
	Delivery *AddressFields `json:"delivery_address"`
	Billing  *AddressFields `json:"billing_address"`
}

// Empty reports whether the patch changes nothing.
func (p AddressPatch) Empty() bool {
	return (p.Delivery == nil || p.Delivery.Empty()) && (p.Billing == nil || p.Billing.Empty())
}

// MergeAddress applies the whitelisted fields of f onto a copy of base.
// A nil base starts from an empty address.
func MergeAddress(base *Address, f *AddressFields) *Address {
	if f == nil {
		return base
	}
	out := Address{}
	if base != nil {
		out = *base
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&out.Line1, f.Line1)
	set(&out.Line2, f.Line2)
	set(&out.City, f.City)
	set(&out.Region, f.Region)
	set(&out.PostalCode, f.PostalCode)
	set(&out.Country, f.Country)
	set(&out.Phone, f.Phone)
	return &out
}

// CheckoutStaging is the mutable pre-reservation aggregate.  It belongs to
// exactly one requester and becomes immutable once completed.
type CheckoutStaging struct {
	Token           string         `json:"token"`
	RequesterID     uint64         `json:"requester_id"`
	RequesterName   string         `json:"requester_name"`
	RequesterEmail  string         `json:"requester_email"`
	Items           []LineItem     `json:"items"`
	Pricing         Pricing        `json:"pricing"`
	DeliveryAddress *Address       `json:"delivery_address,omitempty"`
	BillingAddress  *Address       `json:"billing_address,omitempty"`
	Status          CheckoutStatus `json:"status"`
	ReservationIDs  []uint64       `json:"reservation_ids,omitempty"`
	// Version starts at 1 and grows with every committed write, so a cache
	// can tell a late write-back from the row it would overwrite.
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply merges an address patch into the session.
func (s *CheckoutStaging) Apply(p AddressPatch) {
	if p.Delivery != nil {
		s.DeliveryAddress = MergeAddress(s.DeliveryAddress, p.Delivery)
	}
	if p.Billing != nil {
		s.BillingAddress = MergeAddress(s.BillingAddress, p.Billing)
	}
}
