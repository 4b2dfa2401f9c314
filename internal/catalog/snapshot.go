package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProductSnapshot is one observation of a product's attributes at fetch time.
type ProductSnapshot struct {
	ID                 string    `json:"productId" validate:"required"`
	ProductNumber      string    `json:"productNumber"`
	ProductNumberShort string    `json:"productNumberShort"`
	NameBold           string    `json:"productNameBold"`
	NameThin           string    `json:"productNameThin"`
	Producer           string    `json:"producerName"`
	Supplier           string    `json:"supplierName"`
	Category           [3]string `json:"category"`
	Country            string    `json:"country"`
	LaunchDate         string    `json:"productLaunchDate"`

	TemporarilyOutOfStock bool `json:"isTemporaryOutOfStock"`
	CompletelyOutOfStock  bool `json:"isCompletelyOutOfStock"`

	Price          float64 `json:"price" validate:"gte=0"`
	VolumeML       float64 `json:"volume" validate:"gte=0"`
	AlcoholPercent float64 `json:"alcoholPercentage" validate:"gte=0,lte=100"`
}

// DisplayName joins the bold and thin name parts.
func (p ProductSnapshot) DisplayName() string {
	return strings.TrimSpace(p.NameBold + " " + p.NameThin)
}

// FieldError names one field that failed validation and the rule it broke.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError reports why a snapshot cannot be reconciled.
type ValidationError struct {
	ProductID string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s:%s", f.Field, f.Rule)
	}
	if e.ProductID == "" {
		return fmt.Sprintf("invalid snapshot (%s)", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("invalid snapshot %s (%s)", e.ProductID, strings.Join(parts, ", "))
}

var validate = validator.New()

// Validate checks the snapshot's required fields and numeric ranges.
// It returns a *ValidationError describing every failing field.
func Validate(p ProductSnapshot) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	out := &ValidationError{ProductID: p.ID}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// NormalizeLaunchDate returns the calendar date part of a possibly
// time-qualified launch timestamp ("2021-03-01T00:00:00" -> "2021-03-01").
func NormalizeLaunchDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, 'T'); i >= 0 {
		return raw[:i]
	}
	return raw
}
