package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	LazyQuotes bool
	// SkipBlank drops rows whose cells are all empty.
	SkipBlank bool
}

// ReadCSV parses text into rows. Rows may have different widths; callers
// pad or truncate as their schema requires.
func ReadCSV(ctx context.Context, text string, opts CSVOptions) ([][]string, error) {
	return readCSV(ctx, strings.NewReader(text), opts)
}

func readCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		if opts.SkipBlank && isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
