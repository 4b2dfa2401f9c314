// Package valuation computes the derived price metrics stored on each product.
//
// All rounding happens on decimal values so that results such as 0.84 or 20.0
// are exact and stable regardless of float64 representation error in the inputs.
package valuation

import (
	"math"

	"github.com/shopspring/decimal"
)

// PriceEpsilon is the tolerance under which two prices are considered equal.
const PriceEpsilon = 1e-9

var hundred = decimal.NewFromInt(100)

// APK returns milliliters of pure alcohol per currency unit of price, rounded
// to two decimals. The second return value is false when price <= 0, in which
// case the metric is undefined.
func APK(volumeML, alcoholPercent, price float64) (float64, bool) {
	if price <= 0 {
		return 0, false
	}
	ethanol := decimal.NewFromFloat(volumeML).Mul(decimal.NewFromFloat(alcoholPercent)).Div(hundred)
	return ethanol.Div(decimal.NewFromFloat(price)).RoundBank(2).InexactFloat64(), true
}

// APKPtr is APK in nullable form, matching the stored column.
func APKPtr(volumeML, alcoholPercent, price float64) *float64 {
	v, ok := APK(volumeML, alcoholPercent, price)
	if !ok {
		return nil
	}
	return &v
}

// PriceChangePercent returns the change from baseline to current as a
// percentage rounded to one decimal. A non-positive baseline yields 0.
func PriceChangePercent(current, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	base := decimal.NewFromFloat(baseline)
	return decimal.NewFromFloat(current).Sub(base).Div(base).Mul(hundred).RoundBank(1).InexactFloat64()
}

// PricesEqual reports whether a and b differ by less than PriceEpsilon.
func PricesEqual(a, b float64) bool {
	return math.Abs(a-b) < PriceEpsilon
}
