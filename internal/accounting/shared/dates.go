package shared

import "time"

// DateOnly truncates t to a UTC calendar date. Ledger dates carry no time of day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Within reports start <= date <= end on calendar dates.
func Within(date, start, end time.Time) bool {
	date = DateOnly(date)
	return !date.Before(DateOnly(start)) && !date.After(DateOnly(end))
}
