package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

func rec(year, month int, uf, muni, subst string, amount float64) dataset.Record {
	r := dataset.Record{Year: year, State: uf, Municipality: muni, Substance: subst, Amount: amount}
	if month > 0 {
		m := month
		r.Month = &m
		r.Period = dataset.PeriodKey(year, m)
	}
	return r
}

func titles(statements []Statement) []string {
	out := make([]string, len(statements))
	for i, s := range statements {
		out[i] = s.Title
	}
	return out
}

func TestGlobal_Empty(t *testing.T) {
	assert.Nil(t, Global(dataset.FromRecords(nil)))
}

func TestGlobal_SingleYear(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2023, 1, "MG", "ITABIRA", "FERRO", 750),
		rec(2023, 2, "PA", "PARAUAPEBAS", "OURO", 250),
	})
	got := Global(ds)
	assert.Equal(t, []string{"Recorde", "Substancia lider", "Concentracao"}, titles(got))
	assert.Equal(t, "2023 foi o ano com maior arrecadacao (R$ 1.000,00)", got[0].Body)
	assert.Equal(t, "FERRO representa 75.0% da arrecadacao", got[1].Body)
	assert.Equal(t, "top 3 municipios representam 100.0% da arrecadacao", got[2].Body)
}

func TestGlobal_GrowthAndRegionalHighlight(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2022, 1, "MG", "A", "FERRO", 100),
		rec(2022, 1, "PA", "B", "FERRO", 100),
		rec(2023, 1, "MG", "A", "FERRO", 150),
		rec(2023, 1, "PA", "B", "FERRO", 102),
	})
	got := Global(ds)
	require.Equal(t, []string{"Recorde", "Tendencia", "Substancia lider", "Destaque regional", "Concentracao"}, titles(got))
	assert.Equal(t, "crescimento de +26.0% entre 2022 e 2023", got[1].Body)
	assert.Equal(t, "MG cresceu 50.0% no ultimo ano", got[3].Body)
}

func TestGlobal_NoRegionalHighlightBelowThreshold(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2022, 1, "MG", "A", "FERRO", 100),
		rec(2023, 1, "MG", "A", "FERRO", 104),
	})
	assert.NotContains(t, titles(Global(ds)), "Destaque regional")
}

func TestGlobal_MonthlyAnomalies(t *testing.T) {
	var records []dataset.Record
	for m := 1; m <= 12; m++ {
		records = append(records, rec(2023, m, "MG", "A", "FERRO", 100+float64(m%2)))
	}
	records[5].Amount = 10000
	got := Global(dataset.FromRecords(records))
	last := got[len(got)-1]
	assert.Equal(t, "Alerta", last.Title)
	assert.Equal(t, "1 mes(es) com arrecadacao atipica detectada", last.Body)
}

func TestMunicipality_Empty(t *testing.T) {
	assert.Nil(t, Municipality(dataset.FromRecords(nil), "X", dataset.FromRecords(nil)))
}

func TestMunicipality_Rules(t *testing.T) {
	full := dataset.FromRecords([]dataset.Record{
		rec(2022, 1, "MG", "ITABIRA", "FERRO", 100),
		rec(2023, 1, "MG", "ITABIRA", "FERRO", 200),
		rec(2023, 1, "MG", "MARIANA", "OURO", 10),
		rec(2023, 1, "MG", "OURO PRETO", "OURO", 10),
		rec(2023, 1, "SP", "SOROCABA", "AREIA", 5000),
	})
	muni := full.Municipality("ITABIRA", "MG")

	got := Municipality(muni, "ITABIRA", full)
	assert.Equal(t, []string{
		"Evolucao",
		"Substancia principal",
		"Comparativo estadual",
		"Ranking",
		"Perfil",
		"Tendencia recente",
	}, titles(got))
	assert.Equal(t, "+100.0% entre 2022 e 2023", got[0].Body)
	assert.Equal(t, "FERRO (100.0% da arrecadacao)", got[1].Body)
	assert.Equal(t, "media 87.5% acima da media de MG", got[2].Body)
	assert.Equal(t, "1º lugar no estado (67% superior)", got[3].Body)
	assert.Equal(t, "exploracao concentrada em uma unica substancia", got[4].Body)
	assert.Equal(t, "crescimento de 100.0% no ultimo ano", got[5].Body)
}

func TestMunicipality_VolatilityAndDecline(t *testing.T) {
	var records []dataset.Record
	for m := 1; m <= 12; m++ {
		amount := 10.0
		if m%2 == 0 {
			amount = 1000
		}
		records = append(records, rec(2022, m, "PA", "MARABA", "COBRE", amount))
	}
	records = append(records, rec(2023, 1, "PA", "MARABA", "COBRE", 100))
	ds := dataset.FromRecords(records)

	got := Municipality(ds, "MARABA", ds)
	assert.Contains(t, titles(got), "Volatilidade")
	last := got[len(got)-1]
	assert.Equal(t, "Tendencia recente", last.Title)
	assert.Contains(t, last.Body, "queda de")
}

func TestMunicipality_Stability(t *testing.T) {
	var records []dataset.Record
	for m := 1; m <= 12; m++ {
		records = append(records, rec(2023, m, "PA", "MARABA", "COBRE", 100))
	}
	ds := dataset.FromRecords(records)
	assert.Contains(t, titles(Municipality(ds, "MARABA", ds)), "Estabilidade")
}

func TestMunicipality_NoVolatilityWhenMeanIsZero(t *testing.T) {
	var records []dataset.Record
	for m := 1; m <= 12; m++ {
		records = append(records, rec(2023, m, "PA", "MARABA", "COBRE", 0))
	}
	ds := dataset.FromRecords(records)
	got := titles(Municipality(ds, "MARABA", ds))
	assert.NotContains(t, got, "Estabilidade")
	assert.NotContains(t, got, "Volatilidade")
}

func TestStatement_String(t *testing.T) {
	assert.Equal(t, "Recorde: x", Statement{Title: "Recorde", Body: "x"}.String())
}
