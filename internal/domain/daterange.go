package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for rental dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// ParseDate parses a yyyy-mm-dd string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd: %w", s, err)
	}
	return t, nil
}

// FormatDate truncates t to its UTC calendar day.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, Validationf("start date: %v", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, Validationf("end date: %v", err)
	}
	if e.Before(s) {
		return DateRange{}, Validationf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Days counts both ends, so a same-day range is one day.
func (r DateRange) Days() int32 {
	return int32((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

// Overlaps reports whether the two ranges share at least one day.
// Adjacent ranges do not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}

// FindConflict returns the first blocking rental whose range overlaps the
// candidate, or nil when the candidate is bookable. Rentals that are not
// CONFIRMED or IN_USE are ignored.
func FindConflict(candidate DateRange, existing []Rental) (*Rental, error) {
	for i := range existing {
		if !existing[i].Status.IsBlocking() {
			continue
		}
		r, err := existing[i].Range()
		if err != nil {
			return nil, err
		}
		if candidate.Overlaps(r) {
			return &existing[i], nil
		}
	}
	return nil, nil
}
