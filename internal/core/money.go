// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Conversion to and from decimal text
// happens only at the boundary (sheet cells, CSV seeds, printed reports).
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a signed amount in minor currency units (two decimal places).
type Cents int64

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a decimal string to cents with half-away-from-zero
// rounding on the third decimal place.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional sign and an optional leading currency symbol. Blank and
// whitespace-only input is treated as zero, matching how empty sheet
// cells are read.
//
// Examples:
//
//	ParseAmount("12.34")   -> 1234, nil
//	ParseAmount("-4,99")   -> -499, nil
//	ParseAmount("$ 1.005") -> 101, nil
//	ParseAmount("   ")     -> 0, nil
func ParseAmount(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimLeft(s, "$€£ ")
	// "(12.50)" is how some spreadsheets render negatives
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = !neg
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		var ok bool
		if s, ok = normalizeComma(s); !ok {
			return 0, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return FromDecimal(d)
}

// normalizeComma resolves what a comma means in s. With a dot present the
// commas must be thousands groups ("1,234.50"). Without one, a single comma
// is a decimal separator ("4,99") unless exactly three digits follow it,
// which reads as a grouped integer ("1,234") and is rejected as ambiguous.
func normalizeComma(s string) (string, bool) {
	if dot := strings.Index(s, "."); dot >= 0 {
		groups := strings.Split(s[:dot], ",")
		if len(groups[0]) < 1 || len(groups[0]) > 3 || strings.Contains(s[dot:], ",") {
			return "", false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		return strings.Join(groups, "") + s[dot:], true
	}
	comma := strings.LastIndex(s, ",")
	if strings.Count(s, ",") > 1 || len(s)-comma-1 == 3 {
		return "", false
	}
	return strings.Replace(s, ",", ".", 1), true
}

// FromDecimal rounds d to two places and returns it as cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	// Reject values that would overflow int64 cents.
	limit := decimal.New(1<<62, -2)
	if d.Abs().GreaterThan(limit) {
		return 0, ErrInvalidAmount
	}
	return Cents(d.Round(2).Shift(2).IntPart()), nil
}

// FromFloat converts a float cell value (as returned by the Sheets API for
// unformatted numbers) into cents.
func FromFloat(f float64) (Cents, error) {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Decimal returns the amount as a two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with exactly two fractional digits, e.g. "12.30".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the magnitude of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}
