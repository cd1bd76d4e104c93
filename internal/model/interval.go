package model

import (
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
)

// Interval is a half-open time range [Start, End).  A reservation ending at
// the exact instant another begins does not overlap it.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval validates and normalises a range to UTC.  It fails with
// apperr.ErrInvalidRange when end is not strictly after start.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, apperr.ErrInvalidRange
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether a and b share at least one instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps is the method form of Overlaps.
func (i Interval) Overlaps(other Interval) bool { return Overlaps(i, other) }

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Valid reports whether the interval is non-degenerate.
func (i Interval) Valid() bool { return i.End.After(i.Start) }
