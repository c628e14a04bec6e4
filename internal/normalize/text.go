// Package normalize converts raw CFEM field values (state codes, month
// labels, Brazilian-formatted numbers, free text) into canonical values.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics decomposes s (NFKD) and drops the combining marks,
// so "Município" becomes "Municipio".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Text builds a join key from an arbitrary value: trimmed, uppercased,
// without diacritics and with internal whitespace collapsed. Null values
// yield "".
func Text(v any) string {
	s, ok := stringify(v)
	if !ok {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	s = StripDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// Municipality is Text for municipality fields that may carry a state
// suffix ("ITABIRA/MG", "ITABIRA - MG"): everything from the first '/' or
// '-' on is dropped.
func Municipality(v any) string {
	s, ok := stringify(v)
	if !ok {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	s, _, _ = strings.Cut(s, "/")
	s, _, _ = strings.Cut(s, "-")
	s = StripDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// stringify renders v as text. It reports false for nil and NaN.
func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case *string:
		if x == nil {
			return "", false
		}
		return *x, true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return "", false
		}
	}
	return fmt.Sprint(v), true
}
