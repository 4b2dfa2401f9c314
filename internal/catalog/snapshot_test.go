package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	p := ProductSnapshot{ID: "A", Price: 100, VolumeML: 700, AlcoholPercent: 12}
	assert.NoError(t, Validate(p))
}

func TestValidate_ZeroValuesAllowed(t *testing.T) {
	// Absent price, volume and strength arrive as zero and are still valid.
	assert.NoError(t, Validate(ProductSnapshot{ID: "A"}))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		snap  ProductSnapshot
		field string
		rule  string
	}{
		{"missing id", ProductSnapshot{Price: 10}, "ID", "required"},
		{"negative price", ProductSnapshot{ID: "A", Price: -1}, "Price", "gte"},
		{"negative volume", ProductSnapshot{ID: "A", VolumeML: -750}, "VolumeML", "gte"},
		{"alcohol above 100", ProductSnapshot{ID: "A", AlcoholPercent: 140}, "AlcoholPercent", "lte"},
		{"negative alcohol", ProductSnapshot{ID: "A", AlcoholPercent: -0.5}, "AlcoholPercent", "gte"},
		{"nan price", ProductSnapshot{ID: "A", Price: math.NaN()}, "Price", "gte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.snap)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, FieldError{Field: tt.field, Rule: tt.rule})
			assert.Contains(t, err.Error(), tt.field+":"+tt.rule)
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	err := Validate(ProductSnapshot{ID: "A", Price: -1, VolumeML: -1})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "A", verr.ProductID)
	assert.Len(t, verr.Fields, 2)
}

func TestNormalizeLaunchDate(t *testing.T) {
	tests := map[string]string{
		"2021-03-01T00:00:00":  "2021-03-01",
		"2021-03-01T12:30:00Z": "2021-03-01",
		"2021-03-01":           "2021-03-01",
		" 2020-01-02 ":         "2020-01-02",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLaunchDate(in), "input %q", in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Absolut Vodka", ProductSnapshot{NameBold: "Absolut", NameThin: "Vodka"}.DisplayName())
	assert.Equal(t, "Absolut", ProductSnapshot{NameBold: "Absolut"}.DisplayName())
}
