package dashboard

import (
	"fmt"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
)

// DateLayout is the form and query string format for from/to dates.
const DateLayout = "2006-01-02"

// DateRange is a half-open creation timestamp interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DefaultRange is [today - days, tomorrow) in now's location.
func DefaultRange(now time.Time, days int) DateRange {
	today := midnight(now)
	return DateRange{
		Start: today.AddDate(0, 0, -days),
		End:   today.AddDate(0, 0, 1),
	}
}

// ParseRange reads inclusive from/to calendar dates. Either bound falls back to
// the default window when empty. The returned End is exclusive.
func ParseRange(from, to string, now time.Time, days int) (DateRange, error) {
	r := DefaultRange(now, days)
	loc := now.Location()

	if from != "" {
		start, err := time.ParseInLocation(DateLayout, from, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: from: %v", domain.ErrInvalidDateRange, err)
		}
		r.Start = start
	}

	if to != "" {
		end, err := time.ParseInLocation(DateLayout, to, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: to: %v", domain.ErrInvalidDateRange, err)
		}
		r.End = end.AddDate(0, 0, 1)
	}

	if !r.Start.Before(r.End) {
		return DateRange{}, fmt.Errorf("%w: from must not be after to", domain.ErrInvalidDateRange)
	}
	return r, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
