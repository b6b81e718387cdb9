// Package datetime provides calendar date utility functions.
package datetime

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/pkg/constants"
)

const (
	// DateLayout is the format expected in requests and spreadsheets.
	DateLayout = constants.DateLayout
)

// ParseOptionalDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseOptionalDate(dateStr string) (*civil.Date, error) {
	if dateStr == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	return &d, nil
}

// Today returns the current calendar date in the given location.
func Today(loc *time.Location) civil.Date {
	return civil.DateOf(time.Now().In(loc))
}

// AddMonths offsets a date by the given number of months. Days that do not
// exist in the target month are clipped to its last day, so Jan 31 + 1 month
// is Feb 28 (or 29).
func AddMonths(d civil.Date, months int) civil.Date {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := d.Day
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: day}
}

// MonthsBetween returns the number of whole months from from to to. The
// result is negative when to is before from.
func MonthsBetween(from, to civil.Date) int {
	months := (to.Year-from.Year)*constants.MonthsPerYear + int(to.Month) - int(from.Month)
	switch {
	case months > 0 && AddMonths(from, months).After(to):
		months--
	case months < 0 && AddMonths(from, months).Before(to):
		months++
	}
	return months
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
