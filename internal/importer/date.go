package importer

import (
	"fmt"
	"time"

	"tally/internal/core"
)

// ResolveDate combines a row's day-of-month with the run's month and year.
//
// Days outside [1, 31] are rejected upstream. A day that is valid in some
// months but not the target one (31 in a 30-day month, 29 February outside
// leap years) is rejected here rather than rolled into the next month: a
// silently shifted purchase date is worse than a correctable error.
func ResolveDate(year int, month time.Month, day int) (time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, core.Invalid(fmt.Sprintf("month %d out of range", month))
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month {
		return time.Time{}, core.Invalid(fmt.Sprintf("day %d does not exist in %s %d", day, month, year))
	}
	return t, nil
}
