package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatBRL renders v as Brazilian currency: "R$ 1.234.567,89".
func FormatBRL(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "R$ -"
	}
	return "R$ " + FormatDecimal(v, 2)
}

// FormatDecimal renders v with '.' grouping thousands and ',' as the
// decimal separator.
func FormatDecimal(v float64, decimals int) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FormatSignedPercent is FormatPercent with an explicit '+' for growth.
func FormatSignedPercent(v float64) string {
	if v > 0 {
		return "+" + FormatPercent(v)
	}
	return FormatPercent(v)
}
