package fetcher

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Encoding names a text encoding tried when decoding uploads.
type Encoding string

// Supported encoding labels. Any other WHATWG label is resolved through
// htmlindex.
const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
	EncodingCP1252 Encoding = "cp1252"
)

// DefaultEncodings is the decoding priority for CFEM exports.
var DefaultEncodings = []Encoding{EncodingUTF8, EncodingLatin1, EncodingCP1252}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cp1252Undefined are the bytes Windows-1252 leaves unassigned.
var cp1252Undefined = []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

// Decode returns b as text using the first encoding in order that decodes
// it without error. When every candidate fails the input is read as UTF-8
// with invalid sequences replaced by U+FFFD and lossy is true. Decode never
// fails.
func Decode(b []byte, order []Encoding) (text string, used Encoding, lossy bool) {
	if len(order) == 0 {
		order = DefaultEncodings
	}
	for _, enc := range order {
		if s, ok := decodeAs(b, enc); ok {
			return s, enc, false
		}
		zap.L().Debug("decode: encoding rejected", zap.String("encoding", string(enc)))
	}

	zap.L().Warn("decode: no encoding matched, replacing invalid bytes",
		zap.Strings("tried", encodingNames(order)),
	)
	return strings.ToValidUTF8(string(bytes.TrimPrefix(b, utf8BOM)), "\uFFFD"), EncodingUTF8, true
}

func decodeAs(b []byte, enc Encoding) (string, bool) {
	switch normalizeLabel(enc) {
	case "utf-8", "utf8":
		if !utf8.Valid(b) {
			return "", false
		}
		return string(bytes.TrimPrefix(b, utf8BOM)), true
	case "latin-1", "latin1", "iso-8859-1":
		return decodeWith(charmap.ISO8859_1, b)
	case "cp1252", "windows-1252":
		for _, c := range cp1252Undefined {
			if bytes.IndexByte(b, c) >= 0 {
				return "", false
			}
		}
		return decodeWith(charmap.Windows1252, b)
	}

	e, err := htmlindex.Get(string(enc))
	if err != nil {
		return "", false
	}
	return decodeWith(e, b)
}

func decodeWith(e encoding.Encoding, b []byte) (string, bool) {
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func normalizeLabel(enc Encoding) string {
	return strings.ToLower(strings.TrimSpace(string(enc)))
}

func encodingNames(order []Encoding) []string {
	names := make([]string, len(order))
	for i, e := range order {
		names[i] = string(e)
	}
	return names
}
