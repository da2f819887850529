package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// ParseAmount parses a UBL amount. Blank or non-numeric text yields zero and
// ok=false; amounts never fail extraction.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, false
	}
	return d, true
}

// NonPositive returns -|d|
func NonPositive(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}

// NonNegative returns |d|
func NonNegative(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// FormatGrouped renders d with two decimals and comma thousands separators,
// e.g. -1,234,567.50
func FormatGrouped(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
