package expiry

import (
	"fmt"

	"github.com/odyssey-erp/ppestock/internal/calendar"
)

// daysPerDisplayYear matches the operators' habit of counting 360-day years on labels.
const daysPerDisplayYear = 360

// ExpiryFromShelfLife returns manufacture + shelfLifeDays.
func ExpiryFromShelfLife(manufacture calendar.Date, shelfLifeDays int) calendar.Date {
	return manufacture.AddDays(shelfLifeDays)
}

// FormatShelfLife renders a shelf life as years and days for reports.
func FormatShelfLife(days int) string {
	if days <= 0 {
		return ""
	}
	years := days / daysPerDisplayYear
	rest := days % daysPerDisplayYear
	switch {
	case years > 0 && rest > 0:
		return fmt.Sprintf("%d ano(s) e %d dia(s)", years, rest)
	case years > 0:
		return fmt.Sprintf("%d ano(s)", years)
	default:
		return fmt.Sprintf("%d dia(s)", days)
	}
}
