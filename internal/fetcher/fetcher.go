// Package fetcher retrieves source files (local paths or HTTP downloads,
// optionally zipped) and decodes them (CSV in UTF-8, Latin-1 or CP1252, or
// XLSX workbooks) into rows of text cells.
package fetcher

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"
)

// Rows is a decoded file: every row as a slice of cells plus the encoding
// that produced the text.
type Rows struct {
	Records  [][]string
	Encoding Encoding
	// Lossy is set when no candidate encoding decoded the input cleanly and
	// undecodable bytes were replaced.
	Lossy bool
	// XLSX is set when the rows came from a workbook; numeric cells then
	// hold plain decimal text rather than locale-formatted values.
	XLSX bool
	// Entry names the archive member the rows were read from, if any.
	Entry string
}

// xlsxMagic is the ZIP local file header that starts every XLSX workbook.
var xlsxMagic = []byte("PK\x03\x04")

// IsXLSX reports whether b looks like an XLSX workbook.
func IsXLSX(b []byte) bool {
	return bytes.HasPrefix(b, xlsxMagic)
}

// ReadTable decodes b as an XLSX workbook when it carries the ZIP signature,
// reading the sheet sel selects, and as delimited text otherwise. A ZIP
// archive wrapping a single data file is unwrapped first.
func ReadTable(ctx context.Context, b []byte, encodings []Encoding, opts CSVOptions, sel XLSXOptions) (*Rows, error) {
	b, entry, err := Unwrap(b)
	if err != nil {
		return nil, err
	}
	if IsXLSX(b) {
		records, err := ReadXLSXBytes(b, sel)
		if err != nil {
			return nil, err
		}
		return &Rows{Records: records, Encoding: EncodingUTF8, XLSX: true, Entry: entry}, nil
	}

	text, enc, lossy := Decode(b, encodings)
	records, err := ReadCSV(ctx, text, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read csv (%s)", enc)
	}
	return &Rows{Records: records, Encoding: enc, Lossy: lossy, Entry: entry}, nil
}
