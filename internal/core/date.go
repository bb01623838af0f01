package core

import (
	"fmt"
	"time"
)

// Date is a calendar date without a time component. Transactions carry a
// Date, not a timestamp; all comparisons are done on UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC, truncated to
// midnight like every other Date.
func Today() Date {
	year, month, day := time.Now().UTC().Date()
	return NewDate(year, int(month), day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MonthKey identifies a calendar month, formatted YYYY-MM. Spending sums
// and notification dedup keys are both scoped by MonthKey.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthKeyOf returns the month key for the given instant.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: expected YYYY-MM", s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Bounds returns the inclusive first and last day of the month.
func (k MonthKey) Bounds() (start, end Date) {
	start = NewDate(k.Year, int(k.Month), 1)
	end = Date{Time: start.AddDate(0, 1, -1)}
	return start, end
}

// Contains reports whether d falls within the month, inclusive on both ends.
func (k MonthKey) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return d.Year() == k.Year && d.Month() == k.Month
}
