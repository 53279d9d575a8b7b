// internal/domain/money.go
package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal" // For precise monetary conversions

	"leadflow-wallet/internal/util"
)

// minorUnitExponent is the number of decimal places of the wallet currency.
const minorUnitExponent = 2

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// FormatMinor renders minor units as a fixed point major unit string, e.g. 9000 → "90.00".
func FormatMinor(amount int64) string {
	return decimal.New(amount, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// MinorFromDecimal converts a major unit amount into minor units.
// Fractions of a minor unit are rejected rather than rounded.
func MinorFromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(minorUnitExponent)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", util.ErrInvalidInput, d, minorUnitExponent)
	}
	if scaled.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s is out of range", util.ErrInvalidInput, d)
	}
	return scaled.IntPart(), nil
}

// ParseMinor parses a major unit string such as "10.50" into minor units.
func ParseMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", util.ErrInvalidInput, s)
	}
	return MinorFromDecimal(d)
}
