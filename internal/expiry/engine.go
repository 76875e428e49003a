// Package expiry classifies products by the days left before their expiry date.
//
// Classification is a pure function of the expiry date and an explicit evaluation
// date; nothing here reads the wall clock.
package expiry

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/ppestock/internal/calendar"
)

// Status enumerates the expiry states of a product.
type Status string

const (
	// StatusNormal means more than NearExpiryWindow days remain.
	StatusNormal Status = "NORMAL"
	// StatusNearExpiry covers 0..NearExpiryWindow days remaining, inclusive.
	StatusNearExpiry Status = "NEAR_EXPIRY"
	// StatusExpired means the expiry date is in the past.
	StatusExpired Status = "EXPIRED"
	// StatusUntracked means no expiry date is recorded.
	StatusUntracked Status = "UNTRACKED"
)

// NearExpiryWindow is the inclusive upper bound, in days, of the near-expiry window.
const NearExpiryWindow = 30

// Statuses lists every status in display order.
var Statuses = []Status{StatusNormal, StatusNearExpiry, StatusExpired, StatusUntracked}

// Result carries the derived fields of one evaluation.
type Result struct {
	DaysRemaining *int
	Status        Status
}

// Classify derives remaining days and status for expiry as seen on today.
func Classify(expiry *calendar.Date, today calendar.Date) Result {
	if expiry == nil {
		return Result{Status: StatusUntracked}
	}
	days := expiry.DaysSince(today)
	return Result{DaysRemaining: &days, Status: statusFor(days)}
}

func statusFor(days int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= NearExpiryWindow:
		return StatusNearExpiry
	default:
		return StatusNormal
	}
}

// Label returns the operator-facing label.
func (s Status) Label() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusNearExpiry:
		return "Próximo do Vencimento"
	case StatusExpired:
		return "Vencido"
	case StatusUntracked:
		return "Sem Data"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts the enum value or the display label, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(trimmed, string(s)) || strings.EqualFold(trimmed, s.Label()) {
			return s, nil
		}
	}
	return "", fmt.Errorf("expiry: unknown status %q", raw)
}
