package fetcher

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ParseSheet reads a sheet selector: blank means the first sheet, digits a
// zero-based index, anything else a sheet name.
func ParseSheet(s string) XLSXOptions {
	s = strings.TrimSpace(s)
	if s == "" {
		return XLSXOptions{}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return XLSXOptions{SheetIndex: i}
	}
	return XLSXOptions{SheetName: s}
}

// String renders the selector in the form ParseSheet accepts.
func (o XLSXOptions) String() string {
	if o.SheetName != "" {
		return o.SheetName
	}
	return strconv.Itoa(o.SheetIndex)
}

// ReadXLSXBytes reads an in-memory workbook and returns the rows of the
// selected sheet as text.
func ReadXLSXBytes(b []byte, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open binary")
	}
	return sheetRows(f, opts)
}

func sheetRows(f *xlsx.File, opts XLSXOptions) ([][]string, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
