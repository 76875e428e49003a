package products

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseInput validates raw input and converts it into storable fields.
func ParseInput(in ProductInput) (Fields, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Batch = strings.TrimSpace(in.Batch)
	in.ApprovalCode = strings.TrimSpace(in.ApprovalCode)

	if err := inputValidator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Fields{}, shared.NewValidationError(fe.Field(), reasonFor(fe))
		}
		return Fields{}, shared.NewValidationError("", err.Error())
	}

	fields := Fields{
		Name:          in.Name,
		Batch:         in.Batch,
		Quantity:      in.Quantity,
		ShelfLifeDays: in.ShelfLifeDays,
	}
	if in.ApprovalCode != "" {
		code, err := strconv.ParseInt(in.ApprovalCode, 10, 64)
		if err != nil {
			return Fields{}, shared.NewValidationError("approval_code", "must be numeric")
		}
		fields.ApprovalCode = &code
	}

	var err error
	if fields.PurchaseDate, err = parseOptionalDate("purchase_date", in.PurchaseDate); err != nil {
		return Fields{}, err
	}
	if fields.ManufactureDate, err = parseOptionalDate("manufacture_date", in.ManufactureDate); err != nil {
		return Fields{}, err
	}
	if fields.ExpiryDate, err = parseOptionalDate("expiry_date", in.ExpiryDate); err != nil {
		return Fields{}, err
	}
	if fields.ExpiryDate == nil && fields.ManufactureDate != nil && fields.ShelfLifeDays != nil {
		derived := expiry.ExpiryFromShelfLife(*fields.ManufactureDate, *fields.ShelfLifeDays)
		fields.ExpiryDate = &derived
	}

	if err := fields.Validate(); err != nil {
		return Fields{}, err
	}
	return fields, nil
}

func parseOptionalDate(field, raw string) (*calendar.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := calendar.ParseDisplay(raw)
	if err != nil {
		return nil, shared.NewValidationError(field, "must be a valid dd/mm/yyyy date")
	}
	return &d, nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be a positive integer"
	case "lte":
		return "must be at most " + fe.Param()
	case "numeric":
		return "must be numeric"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
