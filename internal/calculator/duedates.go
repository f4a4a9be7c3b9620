package calculator

import (
	"fmt"
	"time"
)

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AdjustDayOfMonth returns the date in date's month whose day is dayOfMonth,
// clamped to the last day of that month.
func AdjustDayOfMonth(date time.Time, dayOfMonth int) time.Time {
	y, m, _ := date.Date()
	day := min(dayOfMonth, daysIn(y, m))
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// FirstDueDate returns the first due date on or after startDate.
// If the start day is past dayOfMonth, the first due falls in the next month.
func FirstDueDate(startDate time.Time, dayOfMonth int) time.Time {
	if startDate.Day() <= dayOfMonth {
		return AdjustDayOfMonth(startDate, dayOfMonth)
	}
	return AdjustDayOfMonth(firstOfNextMonth(startDate), dayOfMonth)
}

// NextDueDate returns the due date one month after current.
// The clamp is applied per month, so Jan 31 -> Feb 28 -> Mar 31.
func NextDueDate(current time.Time, dayOfMonth int) time.Time {
	return AdjustDayOfMonth(firstOfNextMonth(current), dayOfMonth)
}

// DueDatesBetween returns every due date from FirstDueDate(start) up to and
// including end.
func DueDatesBetween(start, end time.Time, dayOfMonth int) []time.Time {
	return DueDatesFrom(FirstDueDate(start, dayOfMonth), end, dayOfMonth)
}

// DueDatesFrom returns first and the monthly due dates after it, up to and
// including end. first is used as is.
func DueDatesFrom(first, end time.Time, dayOfMonth int) []time.Time {
	var dates []time.Time
	for d := first; !d.After(end); d = NextDueDate(d, dayOfMonth) {
		dates = append(dates, d)
	}
	return dates
}

// ValidateDayOfMonth checks the 1-31 range.
func ValidateDayOfMonth(dayOfMonth int) error {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return fmt.Errorf("day of month must be between 1 and 31, got %d", dayOfMonth)
	}
	return nil
}

// PeriodLabel renders the month of date as "January 2024".
func PeriodLabel(date time.Time) string {
	return date.Format("January 2006")
}

func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
