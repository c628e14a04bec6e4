package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformedNumber is returned when a Brazilian-formatted number cannot be parsed.
var ErrMalformedNumber = eris.New("malformed number")

var amountReplacer = strings.NewReplacer("R$", "", ".", "", ",", ".")

// Amount parses a currency value such as "R$ 1.234.567,89": the currency
// symbol and the thousands separators are dropped and the decimal comma
// becomes a dot. Blank input is a missing value and yields NaN.
func Amount(s string) (float64, error) {
	return parseLocale(amountReplacer.Replace(s), s)
}

// Quantity parses a decimal such as "12,5". Only the decimal comma is
// converted; quantities carry no thousands separator.
func Quantity(s string) (float64, error) {
	return parseLocale(strings.ReplaceAll(s, ",", "."), s)
}

func parseLocale(cleaned, raw string) (float64, error) {
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Wrapf(ErrMalformedNumber, "normalize: parse %q", raw)
	}
	return v, nil
}
