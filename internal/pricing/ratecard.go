// Package pricing computes reservation prices from a resource's rate tiers.
package pricing

import (
	"context"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// Pricer prices one line item.  The result is a non-negative amount in cents.
type Pricer interface {
	Price(ctx context.Context, res model.Resource, iv model.Interval, quantity int) (int64, error)
}

// Unit is the billing unit picked for a duration.
type Unit string

const (
	UnitHour Unit = "hour"
	UnitDay  Unit = "day"
)

// BestUnit picks the billing unit for d and the number of units to charge.
// Partial units round up; anything under a day is billed by the hour.
func BestUnit(d time.Duration) (Unit, int64) {
	if d < 24*time.Hour {
		n := int64(d / time.Hour)
		if d%time.Hour != 0 {
			n++
		}
		if n == 0 {
			n = 1
		}
		return UnitHour, n
	}
	day := 24 * time.Hour
	n := int64(d / day)
	if d%day != 0 {
		n++
	}
	return UnitDay, n
}

// RateCard prices by the hourly tier below one day and the daily tier
// otherwise.  A resource without a daily rate is billed 24 hours per day.
type RateCard struct{}

// Price implements Pricer.
func (RateCard) Price(_ context.Context, res model.Resource, iv model.Interval, quantity int) (int64, error) {
	if !iv.Valid() {
		return 0, apperr.ErrInvalidRange
	}
	if quantity < 1 {
		return 0, apperr.Validation("quantity must be at least 1")
	}
	if res.HourlyRateCents < 0 || res.DailyRateCents < 0 {
		return 0, apperr.New(apperr.KindUpstreamError, "resource %d has a negative rate", res.ID)
	}
	unit, count := BestUnit(iv.Duration())
	rate := res.HourlyRateCents
	if unit == UnitDay {
		rate = res.DailyRateCents
		if rate == 0 {
			rate = res.HourlyRateCents * 24
		}
	}
	return rate * count * int64(quantity), nil
}

// Tax returns amount * basisPoints / 10000 rounded half up.
func Tax(amount int64, basisPoints int) int64 {
	if amount <= 0 || basisPoints <= 0 {
		return 0
	}
	return (amount*int64(basisPoints) + 5000) / 10000
}
