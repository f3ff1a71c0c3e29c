package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a decimal number typed by a user or stored as text.
// Both "10.5" and the pt-BR form "10,5" are accepted.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// "1.234,56": dots group thousands.
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseOrZero is the zero fallback for numeric input: anything Parse rejects
// becomes 0 so a half-filled or partially broken form stays editable.
func ParseOrZero(raw string) float64 {
	v, ok := Parse(raw)
	if !ok {
		return 0
	}
	return v
}

// Format renders v as the shortest decimal text that parses back to v.
func Format(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Money rounds v to cents.
func Money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
