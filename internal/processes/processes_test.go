package processes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
)

const exportCSV = "Relatorio de processos,,,,,\n" +
	"Gerado em 2024-01-10,,,,,\n" +
	"Número do Processo,Município,Nome do Titular,CPF/CNPJ do Titular,Substâncias,Fase Atual\n" +
	"830.001/2010,Itabira/MG,Vale S.A.,33.592.510/0001-54,MINÉRIO DE FERRO,Concessão de Lavra\n" +
	"830.002/2011,ITABIRA - MG,Vale S.A.,33.592.510/0001-54,OURO,CONCESSAO DE LAVRA\n" +
	"830.003/2012,Itabira,Mineradora Alfa ,11.111.111/0001-11,GRANITO,Concessão de Lavra\n" +
	"830.004/2013,Itabira,Beta Ltda,22.222.222/0001-22,AREIA,Requerimento de Pesquisa\n" +
	"830.005/2014,Mariana,Vale S.A.,33.592.510/0001-54,FERRO,Concessão de Lavra\n"

func parse(t *testing.T, text string) *Table {
	t.Helper()
	tbl, err := Parse(context.Background(), []byte(text), DefaultParseOptions())
	require.NoError(t, err)
	return tbl
}

func TestReconcile_PromotesDetectedHeader(t *testing.T) {
	tbl := parse(t, exportCSV)
	assert.Equal(t, 2, tbl.HeaderRow)
	assert.Equal(t, "Número do Processo", tbl.Columns[0])
	require.Len(t, tbl.Rows, 5)
	// The first data row is the raw row right after the header.
	assert.Equal(t, "830.001/2010", tbl.Rows[0][0])
}

func TestReconcile_HeaderOnFirstRow(t *testing.T) {
	raw := Raw([][]string{{"PROCESSO", "MUNICIPIO"}, {"1", "A"}})
	tbl, ok := Reconcile(raw, DefaultScanRows)
	require.True(t, ok)
	assert.Equal(t, 0, tbl.HeaderRow)
	assert.Equal(t, [][]string{{"1", "A"}}, tbl.Rows)
}

func TestReconcile_NoHeaderKeepsRawTable(t *testing.T) {
	raw := Raw([][]string{{"a", "b"}, {"c"}})
	tbl, ok := Reconcile(raw, DefaultScanRows)
	assert.False(t, ok)
	assert.Same(t, raw, tbl)
	assert.Equal(t, []string{"0", "1"}, tbl.Columns)
	assert.Equal(t, []string{"c", ""}, tbl.Rows[1])
	assert.Equal(t, -1, tbl.HeaderRow)
}

func TestReconcile_HeaderBeyondScanWindow(t *testing.T) {
	rows := [][]string{{"x"}, {"x"}, {"x"}}
	rows = append(rows, []string{"PROCESSO", "MUNICIPIO"})
	_, ok := Reconcile(Raw(rows), 3)
	assert.False(t, ok)

	_, ok = Reconcile(Raw(rows), 4)
	assert.True(t, ok)
}

func TestReconcile_RequiresBothKeywords(t *testing.T) {
	_, ok := Reconcile(Raw([][]string{{"PROCESSO", "UF"}, {"MUNICIPIO"}}), DefaultScanRows)
	assert.False(t, ok)
}

func TestReconcile_Empty(t *testing.T) {
	_, ok := Reconcile(nil, DefaultScanRows)
	assert.False(t, ok)
	_, ok = Reconcile(Raw(nil), DefaultScanRows)
	assert.False(t, ok)
}

func TestFindAny_FileOrder(t *testing.T) {
	col, ok := FindAny([]string{"Id", "Cidade", "Município"}, "MUNICIP", "CIDADE")
	require.True(t, ok)
	assert.Equal(t, "Cidade", col)

	_, ok = FindAny([]string{"Id"}, "MUNICIP")
	assert.False(t, ok)
}

func TestFindTitleholder_Priority(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
		ok      bool
	}{
		{"name and holder wins", []string{"CPF/CNPJ do Titular", "Titular", "Nome do Titular"}, "Nome do Titular", true},
		{"tax id excluded", []string{"CPF/CNPJ do Titular", "Titular"}, "Titular", true},
		{"fallback in file order", []string{"CNPJ Titular", "Requerente"}, "CNPJ Titular", true},
		{"fallback detentor", []string{"Processo", "Detentor"}, "Detentor", true},
		{"none", []string{"Processo", "Fase"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindTitleholder(tt.columns)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind_CustomRules(t *testing.T) {
	cols := []string{"Área (ha)", "Área total"}
	got, ok := Find(cols, ContainsAll("AREA", "TOTAL"), ContainsAny("AREA"))
	require.True(t, ok)
	assert.Equal(t, "Área total", got)
}

func TestDetectColumns(t *testing.T) {
	c := DetectColumns(parse(t, exportCSV))
	assert.Equal(t, Columns{
		Municipality: "Município",
		Holder:       "Nome do Titular",
		Substance:    "Substâncias",
		Process:      "Número do Processo",
		Phase:        "Fase Atual",
	}, c)
}

func TestColumns_Override(t *testing.T) {
	c := Columns{Municipality: "A", Holder: "B"}.Override(Columns{Holder: "C", Phase: "D"})
	assert.Equal(t, Columns{Municipality: "A", Holder: "C", Phase: "D"}, c)
}

func TestRecords_Unresolved(t *testing.T) {
	tbl := Raw([][]string{{"a", "b"}})
	_, err := Records(tbl, DetectColumns(tbl))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnsUnresolved))
	assert.Contains(t, err.Error(), "municipality")

	_, err = Records(tbl, Columns{Municipality: "0", Holder: "1", Substance: "0", Process: "1", Phase: "x"})
	assert.True(t, errors.Is(err, ErrColumnsUnresolved))
}

func TestHolders(t *testing.T) {
	tbl := parse(t, exportCSV)
	records, err := Records(tbl, DetectColumns(tbl))
	require.NoError(t, err)
	assert.Equal(t, "ITABIRA", records[1].MunicipalityKey)

	got := Holders(records, "Itabira", DefaultPhase)
	require.Len(t, got, 2)
	assert.Equal(t, Holder{
		Name:       "Mineradora Alfa",
		Substances: []string{"GRANITO"},
		Processes:  []string{"830.003/2012"},
	}, got[0])
	assert.Equal(t, Holder{
		Name:       "Vale S.A.",
		Substances: []string{"MINÉRIO DE FERRO", "OURO"},
		Processes:  []string{"830.001/2010", "830.002/2011"},
	}, got[1])
}

func TestHolders_NoPhaseFilter(t *testing.T) {
	tbl := parse(t, exportCSV)
	records, err := Records(tbl, DetectColumns(tbl))
	require.NoError(t, err)
	assert.Len(t, Holders(records, "ITABIRA", ""), 3)
}

func TestHolders_WithoutPhaseColumn(t *testing.T) {
	records := []Record{
		{MunicipalityKey: "SAO JOSE", Holder: "X", Substance: "AREIA", ProcessNumber: "1"},
		{MunicipalityKey: "SAO JOSE", Holder: "X", Substance: "", ProcessNumber: "2"},
	}
	got := Holders(records, "São José", DefaultPhase)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"AREIA"}, got[0].Substances)
	assert.Equal(t, []string{"1", "2"}, got[0].Processes)
}

func TestLoader_Memoized(t *testing.T) {
	memo := cache.NewMemo(cache.New[*Table](4, time.Hour))
	l := NewLoader(DefaultParseOptions(), memo)
	a, err := l.Load(context.Background(), []byte(exportCSV))
	require.NoError(t, err)
	b, err := l.Load(context.Background(), []byte(exportCSV))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLoader_SharedParseIgnoresCallerCancellation(t *testing.T) {
	memo := cache.NewMemo(cache.New[*Table](4, time.Hour))
	l := NewLoader(DefaultParseOptions(), memo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tbl, err := l.Load(ctx, []byte(exportCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.HeaderRow)
}
