// Package processes loads the secondary mining-rights processes export,
// whose header row and column names vary between vintages, and joins its
// titleholders to primary-dataset municipalities.
package processes

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/fetcher"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// DefaultScanRows is how many leading rows are inspected for the header.
const DefaultScanRows = 6

// Table is a free-form table of text cells. Every row has len(Columns)
// cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`
	// HeaderRow is the raw row index promoted to the header, or -1 when the
	// table kept positional column names.
	HeaderRow int `json:"header_row"`
}

// Raw builds a table with positional column names "0", "1", ... padding
// short rows with blanks.
func Raw(rows [][]string) *Table {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	t := &Table{Columns: make([]string, width), HeaderRow: -1}
	for i := range t.Columns {
		t.Columns[i] = strconv.Itoa(i)
	}
	t.Rows = make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		t.Rows[i] = row
	}
	return t
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// isHeader reports whether row names both the process and the
// municipality columns.
func isHeader(row []string) bool {
	var process, municipality bool
	for _, cell := range row {
		v := normalize.Text(cell)
		process = process || strings.Contains(v, "PROCESSO")
		municipality = municipality || strings.Contains(v, "MUNICIP")
	}
	return process && municipality
}

// Reconcile finds the header among the first scanRows rows of raw and
// promotes it, dropping it and every row above. ok is false when no row
// qualifies; raw is then returned unchanged.
func Reconcile(raw *Table, scanRows int) (*Table, bool) {
	if raw == nil || len(raw.Rows) == 0 {
		return raw, false
	}
	if scanRows <= 0 {
		scanRows = DefaultScanRows
	}
	for i := 0; i < scanRows && i < len(raw.Rows); i++ {
		if !isHeader(raw.Rows[i]) {
			continue
		}
		cols := make([]string, len(raw.Columns))
		copy(cols, raw.Rows[i])
		return &Table{
			Columns:   cols,
			Rows:      raw.Rows[i+1:],
			HeaderRow: i,
		}, true
	}
	return raw, false
}

// ParseOptions configures Parse.
type ParseOptions struct {
	Encodings []fetcher.Encoding
	Delimiter rune
	ScanRows  int
	Sheet     fetcher.XLSXOptions
}

// DefaultParseOptions reads comma-separated text and scans six rows.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		Encodings: fetcher.DefaultEncodings,
		Delimiter: ',',
		ScanRows:  DefaultScanRows,
	}
}

// Parse reads b without assuming a header and reconciles it.
func Parse(ctx context.Context, b []byte, opts ParseOptions) (*Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	rows, err := fetcher.ReadTable(ctx, b, opts.Encodings, fetcher.CSVOptions{
		Delimiter:  opts.Delimiter,
		LazyQuotes: true,
		SkipBlank:  true,
	}, opts.Sheet)
	if err != nil {
		return nil, eris.Wrap(err, "processes: read table")
	}

	t, found := Reconcile(Raw(rows.Records), opts.ScanRows)
	if !found {
		zap.L().Warn("processes: header row not found, using positional columns",
			zap.Int("scan_rows", opts.ScanRows))
	}
	zap.L().Info("processes: loaded",
		zap.Int("rows", len(t.Rows)),
		zap.Int("header_row", t.HeaderRow),
		zap.String("encoding", string(rows.Encoding)),
	)
	return t, nil
}

// Loader parses processes exports, memoizing by content.
type Loader struct {
	opts ParseOptions
	memo *cache.Memo[*Table]
}

// NewLoader creates a Loader. memo may be nil.
func NewLoader(opts ParseOptions, memo *cache.Memo[*Table]) *Loader {
	return &Loader{opts: opts, memo: memo}
}

// Cache returns the memo's backing cache, or nil when caching is off.
func (l *Loader) Cache() *cache.Cache[*Table] {
	if l.memo == nil {
		return nil
	}
	return l.memo.Cache()
}

// Load parses b, consulting the memo first. A shared parse runs detached
// from the caller's cancellation.
func (l *Loader) Load(ctx context.Context, b []byte) (*Table, error) {
	if l.memo == nil {
		return Parse(ctx, b, l.opts)
	}
	key := cache.Key(b, "processes", string(l.opts.Delimiter), strconv.Itoa(l.opts.ScanRows), l.opts.Sheet.String())
	shared := context.WithoutCancel(ctx)
	t, _, err := l.memo.Do(key, func() (*Table, error) {
		return Parse(shared, b, l.opts)
	})
	return t, err
}
