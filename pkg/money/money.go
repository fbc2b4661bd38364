// Package money converts display prices into processor minor units.
package money

import "github.com/shopspring/decimal"

// MinorUnitsPerMajor is the scale for two-decimal currencies.
const MinorUnitsPerMajor = 100

var hundred = decimal.NewFromInt(MinorUnitsPerMajor)

// ToMinorUnits rounds major*100 half away from zero.
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Mul(hundred).Round(0).IntPart()
}

// ChargeUnits returns max(minimum, round(major*100)).
func ChargeUnits(major decimal.Decimal, minimum int64) int64 {
	units := ToMinorUnits(major)
	if units < minimum {
		return minimum
	}
	return units
}

// FromMinorUnits converts an integer amount back to major units.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(hundred)
}
