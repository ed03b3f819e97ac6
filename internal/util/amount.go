package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CleanAmount keeps digits and a single decimal point. When several dots
// survive (for example "Rs. 45.00"), only the last one is kept.
func CleanAmount(input string) string {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.Count(out, ".") > 1 {
		last := strings.LastIndex(out, ".")
		out = strings.ReplaceAll(out[:last], ".", "") + out[last:]
	}
	return out
}

// ParseAmount converts a cleaned amount to a number. ok is false for
// empty or non-numeric input.
func ParseAmount(input string) (float64, bool) {
	cleaned := strings.TrimSpace(input)
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if d.IsNegative() {
		return 0, false
	}
	return d.InexactFloat64(), true
}
