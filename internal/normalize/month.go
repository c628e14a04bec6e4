package normalize

import (
	"math"
	"strconv"
	"strings"
)

// monthNames maps Portuguese month names and abbreviations (without
// diacritics) to 1-12. "marco" covers both "março" and the common
// spelling without cedilla.
var monthNames = map[string]int{
	"jan": 1, "janeiro": 1,
	"fev": 2, "fevereiro": 2,
	"mar": 3, "marco": 3,
	"abr": 4, "abril": 4,
	"mai": 5, "maio": 5,
	"jun": 6, "junho": 6,
	"jul": 7, "julho": 7,
	"ago": 8, "agosto": 8,
	"set": 9, "setembro": 9,
	"out": 10, "outubro": 10,
	"nov": 11, "novembro": 11,
	"dez": 12, "dezembro": 12,
}

// MonthNames lists the full Portuguese month names, January first.
var MonthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var monthSeparators = strings.NewReplacer(".", " ", "-", " ", "/", " ")

// Month converts an integer, float or free-text month label to 1-12.
// Integers outside the range, NaN and unknown labels are rejected.
func Month(v any) (int, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return monthInRange(x)
	case int64:
		return monthInRange(int(x))
	case int32:
		return monthInRange(int(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return monthInRange(int(x))
	case float32:
		return Month(float64(x))
	}

	s, ok := stringify(v)
	if !ok {
		return 0, false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	s = StripDiacritics(s)
	s = monthSeparators.Replace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}

	if joined := strings.Join(fields, " "); isDigits(joined) {
		n, err := strconv.Atoi(joined)
		if err != nil {
			return 0, false
		}
		return monthInRange(n)
	}

	m, ok := monthNames[fields[0]]
	return m, ok
}

func monthInRange(m int) (int, bool) {
	if m < 1 || m > 12 {
		return 0, false
	}
	return m, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
