package processes

import (
	"strings"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// Rule tests a normalized column name.
type Rule func(name string) bool

// ContainsAny matches names containing any of subs.
func ContainsAny(subs ...string) Rule {
	return func(name string) bool {
		for _, s := range subs {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// ContainsAll matches names containing every one of subs.
func ContainsAll(subs ...string) Rule {
	return func(name string) bool {
		for _, s := range subs {
			if !strings.Contains(name, s) {
				return false
			}
		}
		return true
	}
}

// Excluding matches names accepted by r that contain none of subs.
func Excluding(r Rule, subs ...string) Rule {
	deny := ContainsAny(subs...)
	return func(name string) bool {
		return r(name) && !deny(name)
	}
}

// Find applies rules in priority order and returns the first column, in
// file order, accepted by the earliest rule that accepts any column.
func Find(columns []string, rules ...Rule) (string, bool) {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = normalize.Text(c)
	}
	for _, r := range rules {
		for i, n := range normalized {
			if r(n) {
				return columns[i], true
			}
		}
	}
	return "", false
}

// FindAny returns the first column whose normalized name contains any of
// candidates.
func FindAny(columns []string, candidates ...string) (string, bool) {
	return Find(columns, ContainsAny(candidates...))
}

// Titleholder rules, highest priority first. The tax-ID exclusion keeps
// "CPF/CNPJ do titular" columns from being taken for the name.
var titleholderRules = []Rule{
	ContainsAll("NOME", "TITULAR"),
	Excluding(ContainsAny("TITULAR"), "CPF", "CNPJ"),
	ContainsAny("TITULAR", "REQUERENTE", "DETENTOR"),
}

// FindTitleholder locates the titleholder name column.
func FindTitleholder(columns []string) (string, bool) {
	return Find(columns, titleholderRules...)
}
