package grid

import "github.com/shopspring/decimal"

// significantDigits is the precision kept by Quotient regardless of magnitude
const significantDigits = 18

// Quotient returns a/b rounded to at least significantDigits significant
// digits. decimal.Div rounds to a fixed number of decimal places, which
// collapses small quotients to zero.
func Quotient(a, b decimal.Decimal) decimal.Decimal {
	places := int32(significantDigits) - (magnitude(a) - magnitude(b)) + 1
	if places < int32(decimal.DivisionPrecision) {
		places = int32(decimal.DivisionPrecision)
	}
	return a.DivRound(b, places)
}

// magnitude is the number of integer digits of d, negative for values
// below 0.1. Zero has magnitude 0.
func magnitude(d decimal.Decimal) int32 {
	if d.IsZero() {
		return 0
	}
	return int32(d.NumDigits()) + d.Exponent()
}
