// Package money provides cents-safe conversion, allocation and parsing of
// monetary amounts. All aggregation and comparison elsewhere in the module
// happens in integer cents; decimals exist only at the input and output
// boundaries.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// ToCents converts a decimal amount to integer cents using
// round-half-away-from-zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents back to a two-place decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// RoundToTwo rounds an amount to two decimal places, half away from zero.
func RoundToTwo(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AllocateCents splits a non-negative total between two parties. Part A is
// rounded from total*pctA/100; part B is the remainder, so the two parts
// always sum exactly to the total. The remainder, not a second rounding,
// absorbs the error.
func AllocateCents(totalCents int64, pctA decimal.Decimal) (int64, int64) {
	centsA := decimal.NewFromInt(totalCents).Mul(pctA).Div(hundred).Round(0).IntPart()
	return centsA, totalCents - centsA
}

// ParseCurrency parses a human-entered or bank-exported amount. It tolerates
// the Brazilian format (R$ 1.234,56), the plain format (1234.56 or 1,234.56),
// parenthesized negatives and trailing-minus notation. Unparsable input
// yields zero.
func ParseCurrency(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	// Decide which separator is the decimal one: when both appear, the one
	// closer to the end wins; a lone comma is the Brazilian decimal mark.
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		i := strings.LastIndex(s, ",")
		s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}
