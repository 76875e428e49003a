package products

import (
	"strings"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// Fields holds every mutable attribute of a product. Updates overwrite all of them.
type Fields struct {
	Name            string         `json:"name"`
	Batch           string         `json:"batch"`
	ApprovalCode    *int64         `json:"approval_code,omitempty"`
	Quantity        int            `json:"quantity"`
	PurchaseDate    *calendar.Date `json:"purchase_date,omitempty"`
	ManufactureDate *calendar.Date `json:"manufacture_date,omitempty"`
	ExpiryDate      *calendar.Date `json:"expiry_date,omitempty"`
	ShelfLifeDays   *int           `json:"shelf_life_days,omitempty"`
}

// Product is a stored record. ID is assigned by the store and never reused.
type Product struct {
	ID int64 `json:"id"`
	Fields
}

// EnrichedProduct carries the derived expiry fields computed for one evaluation date.
type EnrichedProduct struct {
	Product
	DaysRemaining *int          `json:"days_remaining"`
	Status        expiry.Status `json:"status"`
	StatusLabel   string        `json:"status_label"`
}

// Enrich classifies p as seen on today.
func Enrich(p Product, today calendar.Date) EnrichedProduct {
	res := expiry.Classify(p.ExpiryDate, today)
	return EnrichedProduct{
		Product:       p,
		DaysRemaining: res.DaysRemaining,
		Status:        res.Status,
		StatusLabel:   res.Status.Label(),
	}
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Term   string
	Status expiry.Status
}

// ProductInput is the raw form submitted by the presentation layer. Dates use
// the dd/mm/yyyy display convention and may be blank.
type ProductInput struct {
	Name            string `json:"name" validate:"required"`
	Batch           string `json:"batch" validate:"required"`
	ApprovalCode    string `json:"approval_code" validate:"omitempty,numeric"`
	Quantity        int    `json:"quantity" validate:"gt=0"`
	PurchaseDate    string `json:"purchase_date"`
	ManufactureDate string `json:"manufacture_date"`
	ExpiryDate      string `json:"expiry_date"`
	ShelfLifeDays   *int   `json:"shelf_life_days" validate:"omitempty,gt=0,lte=36500"`
}

// Validate checks the invariants the store enforces on every write.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return shared.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(f.Batch) == "" {
		return shared.NewValidationError("batch", "is required")
	}
	if f.Quantity <= 0 {
		return shared.NewValidationError("quantity", "must be a positive integer")
	}
	if f.ShelfLifeDays != nil && *f.ShelfLifeDays <= 0 {
		return shared.NewValidationError("shelf_life_days", "must be a positive integer")
	}
	for _, d := range []struct {
		field string
		date  *calendar.Date
	}{
		{"purchase_date", f.PurchaseDate},
		{"manufacture_date", f.ManufactureDate},
		{"expiry_date", f.ExpiryDate},
	} {
		if d.date != nil && d.date.Year > calendar.MaxYear {
			return shared.NewValidationError(d.field, "must not be after year 9999")
		}
	}
	return nil
}
