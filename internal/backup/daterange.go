package backup

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange indicates a date range whose end precedes its start,
// or a call that requires a bounded range receiving an open one.
var ErrInvalidRange = errors.New("invalid date range")

// matchLayout is the date-only encoding used by Match for open-ended
// ranges. The token is deliberately coarser than the instant bounds: it
// only narrows the remote listing window, it never replaces the exact
// filter.
const matchLayout = "20060102"

// DateRange is an inclusive [Start, End] instant interval. A zero End
// means open-ended (no upper bound). Immutable once constructed.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates and builds a range. End may be the zero time.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, fmt.Errorf("%w: start is required", ErrInvalidRange)
	}
	if !end.IsZero() && end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidRange, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	return DateRange{Start: start, End: end}, nil
}

// Bounded reports whether the range has an upper bound.
func (r DateRange) Bounded() bool {
	return !r.End.IsZero()
}

// Contains reports whether t falls within the inclusive bounds.
// An open-ended range contains everything at or after Start.
func (r DateRange) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	return !r.Bounded() || !t.After(r.End)
}

// Match returns the coarse lexical token that scopes the remote prefix
// before exact filtering. For a bounded range it is the common prefix of
// the encoded start and end instants, so a range spanning several days
// widens to a token every in-range key shares. An open-ended range
// yields the date-only token of Start.
func (r DateRange) Match() string {
	if !r.Bounded() {
		return r.Start.UTC().Format(matchLayout)
	}
	return commonPrefix(
		r.Start.UTC().Format(timeLayout),
		r.End.UTC().Format(timeLayout),
	)
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}

func (r DateRange) String() string {
	end := "open"
	if r.Bounded() {
		end = r.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s]", r.Start.UTC().Format(time.RFC3339), end)
}
