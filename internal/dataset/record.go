// Package dataset loads CFEM collection exports into cleaned, immutable
// record tables and provides the filters and group-by helpers the metrics
// engine builds on.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Column names a semantic field of a Record.
type Column string

// Semantic columns of the primary dataset.
const (
	ColYear         Column = "year"
	ColMonth        Column = "month"
	ColState        Column = "state"
	ColStateRaw     Column = "state_raw"
	ColMunicipality Column = "municipality"
	ColSubstance    Column = "substance"
	ColPayerType    Column = "payer_type"
	ColAmount       Column = "amount_collected"
	ColQuantity     Column = "quantity_traded"
	ColPeriod       Column = "period"
)

// ParseColumn maps a column name (as used in flags and query strings) to a
// Column.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ColYear, ColMonth, ColState, ColStateRaw, ColMunicipality,
		ColSubstance, ColPayerType, ColAmount, ColQuantity, ColPeriod:
		return c, nil
	}
	return "", eris.Errorf("dataset: unknown column %q", s)
}

// Numeric reports whether c holds a value rather than a grouping key.
func (c Column) Numeric() bool {
	return c == ColAmount || c == ColQuantity
}

// Key returns r's value for a categorical column. ok is false when the
// record has no value for it.
func (c Column) Key(r Record) (string, bool) {
	switch c {
	case ColYear:
		return strconv.Itoa(r.Year), true
	case ColMonth:
		if r.Month == nil {
			return "", false
		}
		return strconv.Itoa(*r.Month), true
	case ColState:
		return r.State, r.State != ""
	case ColStateRaw:
		return r.StateRaw, r.StateRaw != ""
	case ColMunicipality:
		return r.Municipality, r.Municipality != ""
	case ColSubstance:
		return r.Substance, r.Substance != ""
	case ColPayerType:
		return r.PayerType, r.PayerType != ""
	case ColPeriod:
		return r.Period, r.Period != ""
	}
	return "", false
}

// Value returns r's value for a numeric column. NaN marks a missing value.
func (c Column) Value(r Record) float64 {
	switch c {
	case ColAmount:
		return r.Amount
	case ColQuantity:
		return r.Quantity
	}
	return math.NaN()
}

// Record is one cleaned collection event.
type Record struct {
	Year         int     `json:"year"`
	Month        *int    `json:"month"`
	State        string  `json:"state"`
	StateRaw     string  `json:"state_raw"`
	Municipality string  `json:"municipality"`
	Substance    string  `json:"substance"`
	PayerType    string  `json:"payer_type"`
	Amount       float64 `json:"amount_collected"`
	Quantity     float64 `json:"quantity_traded"`
	// Period is the "YYYY-MM" key; empty when the month is unknown.
	Period string `json:"period"`
	// Extra holds unrecognised source columns in file order.
	Extra []string `json:"extra,omitempty"`
}

// PeriodKey formats the composite year-month key used by every
// period-based metric.
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParsePeriod splits a key produced by PeriodKey.
func ParsePeriod(key string) (year, month int, ok bool) {
	y, m, found := strings.Cut(key, "-")
	if !found {
		return 0, 0, false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, false
	}
	month, err = strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

// columnRef describes one column of the cleaned table: a semantic field or
// a passthrough source column.
type columnRef struct {
	name  string
	field Column
	extra int
}

// Dataset is a cleaned primary table. It is never mutated after loading;
// filters return new Datasets that share the column layout.
type Dataset struct {
	Header   []string `json:"header"`
	Records  []Record `json:"-"`
	Encoding string   `json:"encoding"`
	Lossy    bool     `json:"lossy"`
	// Hash is the SHA-256 of the source bytes.
	Hash string `json:"hash"`

	columns []columnRef
	fields  map[Column]bool
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Has reports whether the source file carried column c.
func (d *Dataset) Has(c Column) bool {
	return d.fields[c]
}

// Columns returns the names of the cleaned table's columns: source columns
// in file order followed by derived audit columns.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.name
	}
	return names
}

// Cell returns the text of column i for r. ok is false for missing values.
func (d *Dataset) Cell(r Record, i int) (string, bool) {
	ref := d.columns[i]
	if ref.field == "" {
		if ref.extra >= len(r.Extra) || r.Extra[ref.extra] == "" {
			return "", false
		}
		return r.Extra[ref.extra], true
	}
	if ref.field.Numeric() {
		v := ref.field.Value(r)
		if math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return ref.field.Key(r)
}

// RowKey returns a key identifying the full contents of r, used for exact
// duplicate detection.
func (d *Dataset) RowKey(r Record) string {
	var b strings.Builder
	for i := range d.columns {
		if v, ok := d.Cell(r, i); ok {
			b.WriteString(v)
		} else {
			b.WriteString("\x00")
		}
		b.WriteString("\x1f")
	}
	return b.String()
}

// derive returns a Dataset with the same layout holding records.
func (d *Dataset) derive(records []Record) *Dataset {
	return &Dataset{
		Header:   d.Header,
		Records:  records,
		Encoding: d.Encoding,
		Lossy:    d.Lossy,
		Hash:     d.Hash,
		columns:  d.columns,
		fields:   d.fields,
	}
}

// FromRecords builds a Dataset from in-memory records using the default
// column layout.
func FromRecords(records []Record) *Dataset {
	s := DefaultSchema()
	d := &Dataset{
		Records: records,
		fields:  make(map[Column]bool),
	}
	for _, f := range s.fields() {
		d.Header = append(d.Header, f.name)
		d.columns = append(d.columns, columnRef{name: f.name, field: f.col})
		d.fields[f.col] = true
	}
	d.columns = append(d.columns, columnRef{name: s.State + "_raw", field: ColStateRaw})
	d.fields[ColStateRaw] = true
	return d
}
