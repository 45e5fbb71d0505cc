package types

import (
	"fmt"
	"time"
)

// NextBillingDate calculates the next billing date based on the start time,
// billing interval and unit count.
// - If the interval is ANNUAL and unit is 1, we add one year.
// - If the interval is WEEKLY and unit is 3, we add 21 days (3 weeks).
// - If the interval is DAILY and unit is 10, we add 10 days.
// Month and year additions are clamped so that e.g. Jan 31 + 1 month lands on
// the last day of February instead of overflowing into March.
func NextBillingDate(start time.Time, unit int, interval BillingInterval) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing interval unit must be a positive integer, got %d", unit)
	}

	switch interval {
	case BILLING_INTERVAL_DAILY:
		return AddClampedDate(start, 0, 0, unit), nil
	case BILLING_INTERVAL_WEEKLY:
		// 1 week = 7 days
		return AddClampedDate(start, 0, 0, 7*unit), nil
	case BILLING_INTERVAL_MONTHLY:
		return AddClampedDate(start, 0, unit, 0), nil
	case BILLING_INTERVAL_ANNUAL:
		return AddClampedDate(start, unit, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing interval type: %s", interval)
	}
}

// AddClampedDate behaves like time.AddDate but clamps the day of month to the
// last valid day of the target month rather than rolling over.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)
	// Normalize month overflow/underflow into years
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Clamp the day to the last day of the target month
	lastDay := daysInMonth(newY, newM)
	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	result := time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
	return result.AddDate(0, 0, days)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
