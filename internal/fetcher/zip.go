package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxEntryBytes caps the decompressed size of an archive entry.
const MaxEntryBytes = 512 << 20

// ErrAmbiguousArchive is returned when an archive holds no data file or
// more than one.
var ErrAmbiguousArchive = eris.New("archive must hold exactly one csv, txt or xlsx file")

// workbookMarker is present in every OOXML package.
const workbookMarker = "[Content_Types].xml"

var dataExtensions = map[string]bool{".csv": true, ".txt": true, ".xlsx": true}

// Unwrap returns the data file inside a ZIP archive and its name. Input that
// is not an archive, or is an XLSX workbook, is returned unchanged with an
// empty name.
func Unwrap(b []byte) ([]byte, string, error) {
	if !bytes.HasPrefix(b, xlsxMagic) {
		return b, "", nil
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.Name == workbookMarker {
			return b, "", nil
		}
		if f.FileInfo().IsDir() || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		if dataExtensions[strings.ToLower(path.Ext(f.Name))] {
			entries = append(entries, f)
		}
	}
	if len(entries) != 1 {
		return nil, "", eris.Wrapf(ErrAmbiguousArchive, "zip: found %d data files", len(entries))
	}

	f := entries[0]
	rc, err := f.Open()
	if err != nil {
		return nil, "", eris.Wrapf(err, "zip: open %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntryBytes+1))
	if err != nil {
		return nil, "", eris.Wrapf(err, "zip: read %s", f.Name)
	}
	if len(data) > MaxEntryBytes {
		return nil, "", eris.Errorf("zip: %s exceeds %d bytes", f.Name, MaxEntryBytes)
	}
	zap.L().Debug("zip: unwrapped archive", zap.String("entry", f.Name), zap.Int("bytes", len(data)))
	return data, f.Name, nil
}
