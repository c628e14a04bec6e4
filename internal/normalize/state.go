package normalize

import (
	"sort"
	"strings"
	"unicode"
)

// states holds the 27 federative unit codes.
var states = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {},
	"ES": {}, "GO": {}, "MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {},
	"PB": {}, "PR": {}, "PE": {}, "PI": {}, "RJ": {}, "RN": {}, "RS": {},
	"RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

// States returns the canonical state codes in alphabetical order.
func States() []string {
	out := make([]string, 0, len(states))
	for uf := range states {
		out = append(out, uf)
	}
	sort.Strings(out)
	return out
}

// IsState reports whether code is one of the canonical state codes.
func IsState(code string) bool {
	_, ok := states[code]
	return ok
}

// State reduces v to a canonical two-letter code. Anything that does not
// reduce exactly to a known code is rejected; there is no fuzzy matching.
func State(v any) (string, bool) {
	s, ok := stringify(v)
	if !ok {
		return "", false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	s = StripDiacritics(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)

	if IsState(s) {
		return s, true
	}
	return "", false
}
