package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-rental/internal/apperr"
)

func day(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func mustInterval(t *testing.T, start, end time.Time) Interval {
	t.Helper()
	iv, err := NewInterval(start, end)
	require.NoError(t, err)
	return iv
}

func TestNewInterval_RejectsDegenerate(t *testing.T) {
	_, err := NewInterval(day(5), day(5))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)

	_, err = NewInterval(day(5), day(1))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)
}

func TestOverlaps(t *testing.T) {
	booked := mustInterval(t, day(1), day(5))

	cases := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"inside", mustInterval(t, day(3), day(4)), true},
		{"covering", mustInterval(t, time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), day(10)), true},
		{"straddles start", mustInterval(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), day(2)), true},
		{"ends where booked starts", mustInterval(t, time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), day(1)), false},
		{"starts where booked ends", mustInterval(t, day(5), day(7)), false},
		{"disjoint", mustInterval(t, day(8), day(9)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(booked, tc.iv))
			assert.Equal(t, Overlaps(booked, tc.iv), Overlaps(tc.iv, booked), "overlap must be symmetric")
		})
	}
	assert.True(t, booked.Overlaps(booked))
}

func TestInterval_Contains(t *testing.T) {
	iv := mustInterval(t, day(1), day(5))
	assert.True(t, iv.Contains(day(1)))
	assert.True(t, iv.Contains(day(4)))
	assert.False(t, iv.Contains(day(5)))
	assert.Equal(t, 96*time.Hour, iv.Duration())
}

func TestStatus_Blocking(t *testing.T) {
	blocking := map[Status]bool{
		StatusPending: true, StatusConfirmed: true, StatusDelivered: true,
		StatusQuotation: false, StatusReturned: false, StatusLate: false, StatusCancelled: false,
	}
	for s, want := range blocking {
		assert.Equal(t, want, s.Blocking(), string(s))
	}
	assert.True(t, StatusReturned.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusLate.IsTerminal())
	assert.False(t, Status("archived").Valid())
}

func TestResource_Bookable(t *testing.T) {
	assert.True(t, Resource{Available: true, QuantityAvailable: 1}.Bookable())
	assert.False(t, Resource{Available: false, QuantityAvailable: 3}.Bookable())
	assert.False(t, Resource{Available: true, QuantityAvailable: 0}.Bookable())
}

func TestCheckoutStaging_ApplyMergesWhitelistedFields(t *testing.T) {
	city := "  Lisbon "
	country := "PT"
	empty := ""
	s := CheckoutStaging{DeliveryAddress: &Address{Line1: "Rua A 1", City: "Porto", Phone: "123"}}

	s.Apply(AddressPatch{
		Delivery: &AddressFields{City: &city, Phone: &empty},
		Billing:  &AddressFields{Country: &country},
	})

	require.NotNil(t, s.DeliveryAddress)
	assert.Equal(t, "Rua A 1", s.DeliveryAddress.Line1)
	assert.Equal(t, "Lisbon", s.DeliveryAddress.City)
	assert.Equal(t, "", s.DeliveryAddress.Phone)
	require.NotNil(t, s.BillingAddress)
	assert.Equal(t, "PT", s.BillingAddress.Country)
}

func TestAddressPatch_Empty(t *testing.T) {
	assert.True(t, AddressPatch{}.Empty())
	assert.True(t, AddressPatch{Delivery: &AddressFields{}}.Empty())
	v := "x"
	assert.False(t, AddressPatch{Billing: &AddressFields{Line2: &v}}.Empty())
}
