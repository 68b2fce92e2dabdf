package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "R$"

var hundred = decimal.NewFromInt(100)

// FormatBRL renders an amount in the Brazilian Real convention:
// "R$ " + dot-grouped integer part + "," + two decimals.
//
//	FormatBRL(decimal.RequireFromString("1234.5")) == "R$ 1.234,50"
func FormatBRL(v decimal.Decimal) string {
	fixed := v.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	if sign != "" && strings.Trim(intPart+fracPart, "0") == "" {
		sign = ""
	}

	return CurrencySymbol + " " + sign + groupThousands(intPart) + "," + fracPart
}

// groupThousands inserts "." every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder

	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}

	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}
