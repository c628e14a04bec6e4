package insight

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// Municipality generates the findings for one municipality. muni holds its
// records; full is the dataset it is compared against, usually filtered to
// the same years.
func Municipality(muni *dataset.Dataset, name string, full *dataset.Dataset) []Statement {
	if muni.Len() == 0 {
		return nil
	}
	uf := muni.Records[0].State
	state := full.Where(func(r dataset.Record) bool { return r.State == uf })
	years := muni.YearTotals()

	return run(muni, []rule{
		func(*dataset.Dataset) (Statement, bool) { return evolution(years) },
		mainSubstance,
		func(m *dataset.Dataset) (Statement, bool) { return stateComparison(m, state, uf) },
		func(*dataset.Dataset) (Statement, bool) { return ranking(state, name) },
		diversification,
		volatility,
		func(*dataset.Dataset) (Statement, bool) { return recentTrend(years) },
	})
}

func evolution(years []dataset.YearTotal) (Statement, bool) {
	if len(years) < 2 {
		return Statement{}, false
	}
	first, last := years[0], years[len(years)-1]
	rate := metrics.GrowthRate(last.Value, first.Value)
	return Statement{
		Title: "Evolucao",
		Body:  fmt.Sprintf("%s entre %d e %d", normalize.FormatSignedPercent(rate), first.Year, last.Year),
	}, true
}

func mainSubstance(m *dataset.Dataset) (Statement, bool) {
	totals := m.Totals(dataset.ColSubstance, dataset.ColAmount)
	if len(totals) == 0 {
		return Statement{}, false
	}
	top := totals[0]
	return Statement{
		Title: "Substancia principal",
		Body: fmt.Sprintf("%s (%s da arrecadacao)",
			top.Key, normalize.FormatPercent(share(top.Value, m.Sum(dataset.ColAmount)))),
	}, true
}

func stateComparison(m, state *dataset.Dataset, uf string) (Statement, bool) {
	if uf == "" {
		return Statement{}, false
	}
	muniMean := mean(m.Values(dataset.ColAmount))
	stateMean := mean(state.Values(dataset.ColAmount))
	if stateMean == 0 || math.IsNaN(stateMean) || math.IsNaN(muniMean) {
		return Statement{}, false
	}
	diff := (muniMean - stateMean) / stateMean * 100
	if math.Abs(diff) <= stateDiffMin {
		return Statement{}, false
	}
	direction := "abaixo"
	if diff > 0 {
		direction = "acima"
	}
	return Statement{
		Title: "Comparativo estadual",
		Body:  fmt.Sprintf("media %s %s da media de %s", normalize.FormatPercent(math.Abs(diff)), direction, uf),
	}, true
}

func ranking(state *dataset.Dataset, name string) (Statement, bool) {
	pos, total := metrics.Rank(state, name)
	if pos == 0 {
		return Statement{}, false
	}
	switch {
	case pos <= 3:
		percentile := (1 - float64(pos)/float64(total)) * 100
		return Statement{
			Title: "Ranking",
			Body:  fmt.Sprintf("%dº lugar no estado (%.0f%% superior)", pos, percentile),
		}, true
	case float64(pos) <= float64(total)*0.1:
		return Statement{
			Title: "Ranking",
			Body:  fmt.Sprintf("top 10%% no estado (%dº de %d)", pos, total),
		}, true
	case float64(pos) <= float64(total)*0.25:
		return Statement{
			Title: "Ranking",
			Body:  fmt.Sprintf("top 25%% no estado (%dº de %d)", pos, total),
		}, true
	}
	return Statement{}, false
}

func diversification(m *dataset.Dataset) (Statement, bool) {
	n := len(m.Distinct(dataset.ColSubstance))
	switch {
	case n == 1:
		return Statement{Title: "Perfil", Body: "exploracao concentrada em uma unica substancia"}, true
	case n >= diversifiedMin:
		return Statement{Title: "Perfil", Body: fmt.Sprintf("exploracao diversificada em %d substancias", n)}, true
	}
	return Statement{}, false
}

func volatility(m *dataset.Dataset) (Statement, bool) {
	periods := m.PeriodTotals()
	if len(periods) < volatilityPeriods {
		return Statement{}, false
	}
	cv, ok := metrics.CoefficientOfVariation(periodValues(periods))
	if !ok {
		return Statement{}, false
	}
	switch {
	case cv > volatilityHighCV:
		return Statement{Title: "Volatilidade", Body: fmt.Sprintf("variacao mensal alta (CV %.0f%%)", cv)}, true
	case cv < volatilityLowCV:
		return Statement{Title: "Estabilidade", Body: "arrecadacao consistente ao longo do tempo"}, true
	}
	return Statement{}, false
}

func recentTrend(years []dataset.YearTotal) (Statement, bool) {
	if len(years) < 2 {
		return Statement{}, false
	}
	rate := metrics.GrowthRate(years[len(years)-1].Value, years[len(years)-2].Value)
	switch {
	case rate > recentTrendMin:
		return Statement{
			Title: "Tendencia recente",
			Body:  fmt.Sprintf("crescimento de %s no ultimo ano", normalize.FormatPercent(rate)),
		}, true
	case rate < -recentTrendMin:
		return Statement{
			Title: "Tendencia recente",
			Body:  fmt.Sprintf("queda de %s no ultimo ano", normalize.FormatPercent(math.Abs(rate))),
		}, true
	}
	return Statement{}, false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
