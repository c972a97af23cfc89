// Package timeslot validates and compares the half-open [start, end) time
// ranges appointments occupy.
package timeslot

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid time range")

// Range is a validated half-open interval [Start, End) with End > Start.
type Range struct {
	Start time.Time
	End   time.Time
}

// ParseRange parses RFC3339 start/end values and validates End > Start.
func ParseRange(start, end string) (Range, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad start %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad end %q", ErrInvalidRange, end)
	}
	return NewRange(s, e)
}

// NewRange validates an already-parsed pair.
func NewRange(start, end time.Time) (Range, error) {
	if start.IsZero() || end.IsZero() {
		return Range{}, fmt.Errorf("%w: zero instant", ErrInvalidRange)
	}
	if !end.After(start) {
		return Range{}, fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether two half-open intervals intersect:
// [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
