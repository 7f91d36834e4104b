// Package money holds the fixed-point helpers every amount in the till goes through.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored for every money column.
const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d to Places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Parse reads a money string, rejecting more than Places fractional digits.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", value)
	}
	if !FitsPlaces(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", value, Places)
	}
	return d, nil
}

// FitsPlaces reports whether d is representable without rounding.
func FitsPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Round(Places))
}

// LineSubtotal is quantity times unit price.
func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// Sum adds values exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Tax applies a flat rate to subtotal.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(rate))
}

// Total is subtotal minus discount plus tax.
func Total(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(tax)
}

// PercentOf returns pct percent of amount, rounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// Format renders d with exactly Places fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
