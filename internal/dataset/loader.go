package dataset

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/fetcher"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// ErrMissingColumn is returned when a required source column is absent.
var ErrMissingColumn = eris.New("missing required column")

// Schema maps semantic columns to the header names used by the export.
// Header matching ignores case, accents and surrounding whitespace.
type Schema struct {
	Year         string `mapstructure:"year" yaml:"year"`
	Month        string `mapstructure:"month" yaml:"month"`
	State        string `mapstructure:"state" yaml:"state"`
	Municipality string `mapstructure:"municipality" yaml:"municipality"`
	Substance    string `mapstructure:"substance" yaml:"substance"`
	PayerType    string `mapstructure:"payer_type" yaml:"payer_type"`
	Amount       string `mapstructure:"amount" yaml:"amount"`
	Quantity     string `mapstructure:"quantity" yaml:"quantity"`
}

// DefaultSchema returns the column names of the public CFEM export.
func DefaultSchema() Schema {
	return Schema{
		Year:         "Ano",
		Month:        "Mês",
		State:        "UF",
		Municipality: "Município",
		Substance:    "Substância",
		PayerType:    "Tipo_PF_PJ",
		Amount:       "ValorRecolhido",
		Quantity:     "QuantidadeComercializada",
	}
}

type schemaField struct {
	col      Column
	name     string
	required bool
}

func (s Schema) fields() []schemaField {
	return []schemaField{
		{ColYear, s.Year, true},
		{ColMonth, s.Month, false},
		{ColState, s.State, false},
		{ColMunicipality, s.Municipality, false},
		{ColSubstance, s.Substance, false},
		{ColPayerType, s.PayerType, false},
		{ColAmount, s.Amount, true},
		{ColQuantity, s.Quantity, true},
	}
}

// resolve maps each semantic column to its header index.
func (s Schema) resolve(header []string) (map[Column]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalize.Text(h)
	}

	idx := make(map[Column]int)
	taken := make(map[int]bool)
	for _, f := range s.fields() {
		want := normalize.Text(f.name)
		if want != "" {
			for i, h := range normalized {
				if h == want && !taken[i] {
					idx[f.col] = i
					taken[i] = true
					break
				}
			}
		}
		if _, ok := idx[f.col]; !ok && f.required {
			return nil, eris.Wrapf(ErrMissingColumn, "dataset: column %q (%s)", f.name, f.col)
		}
	}
	return idx, nil
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Schema    Schema
	Encodings []fetcher.Encoding
	Delimiter rune
	// Sheet selects the worksheet of XLSX sources.
	Sheet fetcher.XLSXOptions
}

// DefaultLoaderConfig returns the settings for semicolon-separated CFEM
// exports.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Schema:    DefaultSchema(),
		Encodings: fetcher.DefaultEncodings,
		Delimiter: ';',
	}
}

func (c LoaderConfig) fingerprint() string {
	var b strings.Builder
	for _, f := range c.Schema.fields() {
		b.WriteString(f.name)
		b.WriteByte('|')
	}
	for _, e := range c.Encodings {
		b.WriteString(string(e))
		b.WriteByte('|')
	}
	b.WriteRune(c.Delimiter)
	b.WriteByte('|')
	b.WriteString(c.Sheet.String())
	return b.String()
}

// Loader turns uploaded byte buffers into Datasets. Identical content is
// served from the memo without reparsing.
type Loader struct {
	cfg  LoaderConfig
	memo *cache.Memo[*Dataset]
}

// NewLoader creates a Loader. memo may be nil to disable caching.
func NewLoader(cfg LoaderConfig, memo *cache.Memo[*Dataset]) *Loader {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ';'
	}
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = fetcher.DefaultEncodings
	}
	return &Loader{cfg: cfg, memo: memo}
}

// Cache returns the memo's backing cache, or nil when caching is off.
func (l *Loader) Cache() *cache.Cache[*Dataset] {
	if l.memo == nil {
		return nil
	}
	return l.memo.Cache()
}

// Load parses b, consulting the memo first. A shared parse runs detached
// from the caller's cancellation since other callers may be waiting on it.
func (l *Loader) Load(ctx context.Context, b []byte) (*Dataset, error) {
	if l.memo == nil {
		return l.Parse(ctx, b)
	}

	key := cache.Key(b, l.cfg.fingerprint())
	shared := context.WithoutCancel(ctx)
	ds, hit, err := l.memo.Do(key, func() (*Dataset, error) {
		return l.Parse(shared, b)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		zap.L().Debug("dataset: cache hit", zap.String("hash", ds.Hash), zap.Int("records", ds.Len()))
	}
	return ds, nil
}

// Parse decodes and cleans b without caching.
func (l *Loader) Parse(ctx context.Context, b []byte) (*Dataset, error) {
	rows, err := fetcher.ReadTable(ctx, b, l.cfg.Encodings, fetcher.CSVOptions{
		Delimiter:  l.cfg.Delimiter,
		LazyQuotes: true,
		SkipBlank:  true,
	}, l.cfg.Sheet)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read table")
	}
	if len(rows.Records) == 0 {
		return nil, eris.Wrap(ErrMissingColumn, "dataset: file has no header row")
	}

	header := rows.Records[0]
	idx, err := l.cfg.Schema.resolve(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Header:   header,
		Encoding: string(rows.Encoding),
		Lossy:    rows.Lossy,
		Hash:     cache.Key(b),
		fields:   make(map[Column]bool, len(idx)),
	}
	for c := range idx {
		ds.fields[c] = true
	}

	fieldAt := make(map[int]Column, len(idx))
	for c, i := range idx {
		fieldAt[i] = c
	}
	var extraAt []int
	for i, name := range header {
		if c, ok := fieldAt[i]; ok {
			ds.columns = append(ds.columns, columnRef{name: name, field: c})
			continue
		}
		ds.columns = append(ds.columns, columnRef{name: name, extra: len(extraAt)})
		extraAt = append(extraAt, i)
	}
	if i, ok := idx[ColState]; ok {
		ds.fields[ColStateRaw] = true
		ds.columns = append(ds.columns, columnRef{name: header[i] + "_raw", field: ColStateRaw})
	}

	p := rowParser{idx: idx, extraAt: extraAt, header: header, native: rows.XLSX}
	ds.Records = make([]Record, 0, len(rows.Records)-1)
	for n, row := range rows.Records[1:] {
		if n%1000 == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "dataset: parse cancelled")
		}
		rec, err := p.parse(n+1, row)
		if err != nil {
			return nil, err
		}
		ds.Records = append(ds.Records, rec)
	}

	zap.L().Info("dataset: loaded",
		zap.Int("records", len(ds.Records)),
		zap.String("encoding", ds.Encoding),
		zap.Bool("lossy", ds.Lossy),
		zap.Bool("xlsx", rows.XLSX),
	)
	return ds, nil
}

type rowParser struct {
	idx     map[Column]int
	extraAt []int
	header  []string
	// native is set for workbook rows, whose numeric cells are plain decimals.
	native bool
}

func (p rowParser) cell(row []string, c Column) (string, bool) {
	i, ok := p.idx[c]
	if !ok || i >= len(row) {
		return "", ok
	}
	return row[i], true
}

func (p rowParser) parse(line int, row []string) (Record, error) {
	var rec Record

	yearText, _ := p.cell(row, ColYear)
	year, err := parseYear(yearText)
	if err != nil {
		return rec, eris.Wrapf(err, "dataset: column %q row %d", p.header[p.idx[ColYear]], line)
	}
	rec.Year = year

	amountText, _ := p.cell(row, ColAmount)
	if rec.Amount, err = p.number(amountText, normalize.Amount); err != nil {
		return rec, eris.Wrapf(err, "dataset: column %q row %d", p.header[p.idx[ColAmount]], line)
	}
	quantityText, _ := p.cell(row, ColQuantity)
	if rec.Quantity, err = p.number(quantityText, normalize.Quantity); err != nil {
		return rec, eris.Wrapf(err, "dataset: column %q row %d", p.header[p.idx[ColQuantity]], line)
	}

	if raw, ok := p.cell(row, ColState); ok {
		rec.StateRaw = raw
		rec.State, _ = normalize.State(inferCell(raw))
	}
	if raw, ok := p.cell(row, ColMonth); ok {
		if m, ok := normalize.Month(inferCell(raw)); ok {
			rec.Month = &m
			rec.Period = PeriodKey(rec.Year, m)
		}
	}
	rec.Municipality, _ = p.cell(row, ColMunicipality)
	rec.Substance, _ = p.cell(row, ColSubstance)
	rec.PayerType, _ = p.cell(row, ColPayerType)

	if len(p.extraAt) > 0 {
		rec.Extra = make([]string, len(p.extraAt))
		for k, i := range p.extraAt {
			if i < len(row) {
				rec.Extra[k] = row[i]
			}
		}
	}
	return rec, nil
}

func (p rowParser) number(raw string, parse func(string) (float64, error)) (float64, error) {
	if p.native {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v, nil
		}
	}
	return parse(raw)
}

func parseYear(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	// Workbooks and some exports carry the year as "2023.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int(f), nil
	}
	return 0, eris.Wrapf(normalize.ErrMalformedNumber, "dataset: year %q", raw)
}

// inferCell types a raw cell the way a tabular reader would: blank cells
// are missing, integral text becomes an int, decimal text a float64 and
// everything else stays a string.
func inferCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return raw
}
