// Package calendar models calendar dates without a time component.
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DisplayLayout is the day/month/year convention used at the input boundary.
	DisplayLayout = "02/01/2006"
	// ISOLayout is the unambiguous storage representation.
	ISOLayout = "2006-01-02"
	// MaxYear is the last year the four-digit layouts can represent.
	MaxYear = 9999

	secondsPerDay = 24 * 60 * 60
)

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a Date, normalising overflowing components the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime takes the calendar day of t in its own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current local calendar day.
func Today() Date {
	return FromTime(time.Now())
}

// ParseDisplay parses dd/mm/yyyy.
func ParseDisplay(s string) (Date, error) {
	return parse(DisplayLayout, s)
}

// ParseISO parses yyyy-mm-dd.
func ParseISO(s string) (Date, error) {
	return parse(ISOLayout, s)
}

// ParseAny accepts either the display or the ISO layout.
func ParseAny(s string) (Date, error) {
	if strings.Contains(s, "/") {
		return ParseDisplay(s)
	}
	return ParseISO(s)
}

func parse(layout, s string) (Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("calendar: parse %q: %w", s, err)
	}
	return FromTime(t), nil
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return d.midnight()
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.midnight().AddDate(0, 0, n))
}

// DaysSince returns d - other in whole days; negative when d is before other.
// Unix seconds are used because time.Duration saturates after about 292 years.
func (d Date) DaysSince(other Date) int {
	return int((d.midnight().Unix() - other.midnight().Unix()) / secondsPerDay)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.midnight().Before(other.midnight())
}

// String renders the ISO form.
func (d Date) String() string {
	return d.midnight().Format(ISOLayout)
}

// Display renders dd/mm/yyyy.
func (d Date) Display() string {
	return d.midnight().Format(DisplayLayout)
}

// MarshalJSON encodes the ISO form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts the ISO or display form.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAny(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Ptr returns a pointer to a copy of d, handy for optional fields.
func Ptr(d Date) *Date {
	return &d
}

// FormatOptional renders d in display form or an empty string when absent.
func FormatOptional(d *Date) string {
	if d == nil {
		return ""
	}
	return d.Display()
}
