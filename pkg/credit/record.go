// Package credit holds the historical origination table and the calendar
// features derived from it.
package credit

import (
	"fmt"
	"time"
)

// HistoricalRecord is the originated value of one day, for one lender or for
// the whole portfolio when Lender is empty.
type HistoricalRecord struct {
	Date   time.Time
	Lender string
	Value  float64

	// Calendar features, filled by Prepare.
	Year      int
	Month     int
	DayOfYear int
	Quarter   string

	// YearShare is Value over the sum of Values of the same lender and
	// calendar year. It is nil when that sum is zero.
	YearShare *float64
}

// Key identifies a row for joins: one per date and lender.
type Key struct {
	Date   time.Time
	Lender string
}

func (r HistoricalRecord) Key() Key {
	return Key{Date: r.Date, Lender: r.Lender}
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// QuarterOf returns the 1 based calendar quarter of t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// QuarterLabel formats the calendar quarter of t as "<year>Q<quarter>".
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), QuarterOf(t))
}
