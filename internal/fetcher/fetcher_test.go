package fetcher

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestDecode_UTF8(t *testing.T) {
	text, enc, lossy := Decode([]byte("Município;UF\n"), nil)
	assert.Equal(t, "Município;UF\n", text)
	assert.Equal(t, EncodingUTF8, enc)
	assert.False(t, lossy)
}

func TestDecode_StripsBOM(t *testing.T) {
	text, _, _ := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "Ano"...), nil)
	assert.Equal(t, "Ano", text)
}

func TestDecode_Latin1Fallback(t *testing.T) {
	// "Município" with í encoded as a single Latin-1 byte.
	raw := []byte("Munic\xedpio")
	text, enc, lossy := Decode(raw, nil)
	assert.Equal(t, "Município", text)
	assert.Equal(t, EncodingLatin1, enc)
	assert.False(t, lossy)
}

func TestDecode_CP1252(t *testing.T) {
	// 0x80 is the euro sign in Windows-1252.
	text, enc, lossy := Decode([]byte("\x80 10"), []Encoding{EncodingUTF8, EncodingCP1252})
	assert.Equal(t, "€ 10", text)
	assert.Equal(t, EncodingCP1252, enc)
	assert.False(t, lossy)
}

func TestDecode_CP1252RejectsUndefinedBytes(t *testing.T) {
	_, ok := decodeAs([]byte("a\x81b"), EncodingCP1252)
	assert.False(t, ok)
}

func TestDecode_LossyFallback(t *testing.T) {
	text, enc, lossy := Decode([]byte("a\xffb"), []Encoding{EncodingUTF8})
	assert.True(t, lossy)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "a�b", text)
}

func TestDecode_HTMLIndexLabel(t *testing.T) {
	text, enc, lossy := Decode([]byte("caf\xe9"), []Encoding{EncodingUTF8, "iso-8859-15"})
	assert.Equal(t, "café", text)
	assert.Equal(t, Encoding("iso-8859-15"), enc)
	assert.False(t, lossy)
}

func TestReadCSV_Semicolon(t *testing.T) {
	rows, err := ReadCSV(context.Background(), "Ano;UF\n2023;SP\n2024;\"R;J\"\n", CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Ano", "UF"}, rows[0])
	assert.Equal(t, []string{"2024", "R;J"}, rows[2])
}

func TestReadCSV_VariableWidthAndBlank(t *testing.T) {
	rows, err := ReadCSV(context.Background(), "a,b,c\n1\n,,\n4,5\n", CSVOptions{SkipBlank: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1"}, rows[1])
	assert.Equal(t, []string{"4", "5"}, rows[2])
}

func TestReadCSV_LazyQuotes(t *testing.T) {
	rows, err := ReadCSV(context.Background(), "a;b\nSANTA BARBARA D\"OESTE;1\n", CSVOptions{Delimiter: ';', LazyQuotes: true})
	require.NoError(t, err)
	assert.Equal(t, "SANTA BARBARA D\"OESTE", rows[1][0])
}

func TestReadCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, "a,b\n", CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadCSV_BadQuote(t *testing.T) {
	_, err := ReadCSV(context.Background(), "a,\"b\n", CSVOptions{})
	require.Error(t, err)
}

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Dados")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadTable_XLSX(t *testing.T) {
	b := buildWorkbook(t, [][]string{{"Ano", "UF"}, {"2023", "MG"}})
	require.True(t, IsXLSX(b))

	rows, err := ReadTable(context.Background(), b, nil, CSVOptions{Delimiter: ';'}, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Ano", "UF"}, {"2023", "MG"}}, rows.Records)
	assert.True(t, rows.XLSX)
}

func TestReadTable_CSV(t *testing.T) {
	rows, err := ReadTable(context.Background(), []byte("Ano;UF\n2023;S\xe3o\n"), nil, CSVOptions{Delimiter: ';'}, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, rows.Encoding)
	assert.False(t, rows.XLSX)
	assert.Equal(t, "São", rows.Records[1][1])
}

// twoSheetWorkbook holds sheets "Capa" and "Dados", each with its own name
// in A1.
func twoSheetWorkbook(t *testing.T) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range []string{"Capa", "Dados"} {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		sheet.AddRow().AddCell().SetString(name)
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSXBytes_Sheets(t *testing.T) {
	b := twoSheetWorkbook(t)

	rows, err := ReadXLSXBytes(b, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Capa"}}, rows)

	rows, err = ReadXLSXBytes(b, XLSXOptions{SheetName: "Dados"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Dados"}}, rows)

	rows, err = ReadXLSXBytes(b, XLSXOptions{SheetIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Dados"}}, rows)

	_, err = ReadXLSXBytes(b, XLSXOptions{SheetName: "missing"})
	assert.Error(t, err)
	_, err = ReadXLSXBytes(b, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}

func TestReadTable_SelectsSheet(t *testing.T) {
	rows, err := ReadTable(context.Background(), twoSheetWorkbook(t), nil, CSVOptions{}, ParseSheet("Dados"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Dados"}}, rows.Records)
}

func TestParseSheet(t *testing.T) {
	assert.Equal(t, XLSXOptions{}, ParseSheet(""))
	assert.Equal(t, XLSXOptions{SheetIndex: 2}, ParseSheet(" 2 "))
	assert.Equal(t, XLSXOptions{SheetName: "Dados"}, ParseSheet("Dados"))
	assert.Equal(t, XLSXOptions{SheetName: "-1"}, ParseSheet("-1"))
	assert.Equal(t, "Dados", ParseSheet("Dados").String())
	assert.Equal(t, "0", XLSXOptions{}.String())
}
