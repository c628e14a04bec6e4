// Package insight turns a cleaned dataset into short, ordered textual
// findings. Each rule runs independently and emits at most one statement
// when its preconditions hold.
package insight

import (
	"fmt"
	"math"
	"slices"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// Statement is one generated finding.
type Statement struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

func (s Statement) String() string {
	return s.Title + ": " + s.Body
}

// Thresholds used by the rules.
const (
	regionalGrowthMin  = 5.0
	anomalyMinPeriods  = 10
	stateDiffMin       = 5.0
	volatilityPeriods  = 12
	volatilityHighCV   = 50.0
	volatilityLowCV    = 20.0
	recentTrendMin     = 20.0
	diversifiedMin     = 5
	concentrationCount = 3
)

type rule func(*dataset.Dataset) (Statement, bool)

func run(d *dataset.Dataset, rules []rule) []Statement {
	var out []Statement
	for _, r := range rules {
		if s, ok := r(d); ok {
			out = append(out, s)
		}
	}
	return out
}

// Global generates the dataset-wide findings in a fixed order.
func Global(d *dataset.Dataset) []Statement {
	if d.Len() == 0 {
		return nil
	}
	return run(d, []rule{
		recordYear,
		latestGrowth,
		leadingSubstance,
		regionalHighlight,
		topMunicipalities,
		monthlyAnomalies,
	})
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

func recordYear(d *dataset.Dataset) (Statement, bool) {
	years := d.YearTotals()
	if len(years) == 0 {
		return Statement{}, false
	}
	best := years[0]
	for _, y := range years[1:] {
		if y.Value > best.Value {
			best = y
		}
	}
	return Statement{
		Title: "Recorde",
		Body:  fmt.Sprintf("%d foi o ano com maior arrecadacao (%s)", best.Year, normalize.FormatBRL(best.Value)),
	}, true
}

func latestGrowth(d *dataset.Dataset) (Statement, bool) {
	years := d.YearTotals()
	if len(years) < 2 {
		return Statement{}, false
	}
	prev, cur := years[len(years)-2], years[len(years)-1]
	rate := metrics.GrowthRate(cur.Value, prev.Value)
	return Statement{
		Title: "Tendencia",
		Body:  fmt.Sprintf("crescimento de %s entre %d e %d", normalize.FormatSignedPercent(rate), prev.Year, cur.Year),
	}, true
}

func leadingSubstance(d *dataset.Dataset) (Statement, bool) {
	totals := d.Totals(dataset.ColSubstance, dataset.ColAmount)
	if len(totals) == 0 {
		return Statement{}, false
	}
	top := totals[0]
	return Statement{
		Title: "Substancia lider",
		Body: fmt.Sprintf("%s representa %s da arrecadacao",
			top.Key, normalize.FormatPercent(share(top.Value, d.Sum(dataset.ColAmount)))),
	}, true
}

func regionalHighlight(d *dataset.Dataset) (Statement, bool) {
	years := d.Years()
	if len(years) < 2 {
		return Statement{}, false
	}
	cur, prev := years[len(years)-1], years[len(years)-2]
	curTotals := stateTotals(d, cur)
	prevTotals := stateTotals(d, prev)

	states := make([]string, 0, len(curTotals))
	for uf := range curTotals {
		states = append(states, uf)
	}
	slices.Sort(states)

	best, bestRate, found := "", math.Inf(-1), false
	for _, uf := range states {
		p, ok := prevTotals[uf]
		if !ok || p <= 0 {
			continue
		}
		if rate := metrics.GrowthRate(curTotals[uf], p); rate > bestRate {
			best, bestRate, found = uf, rate, true
		}
	}
	if !found || bestRate <= regionalGrowthMin {
		return Statement{}, false
	}
	return Statement{
		Title: "Destaque regional",
		Body:  fmt.Sprintf("%s cresceu %s no ultimo ano", best, normalize.FormatPercent(bestRate)),
	}, true
}

func stateTotals(d *dataset.Dataset, year int) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range d.Records {
		if r.Year != year || r.State == "" {
			continue
		}
		v := out[r.State]
		if !math.IsNaN(r.Amount) {
			v += r.Amount
		}
		out[r.State] = v
	}
	return out
}

func topMunicipalities(d *dataset.Dataset) (Statement, bool) {
	totals := d.Totals(dataset.ColMunicipality, dataset.ColAmount)
	if len(totals) == 0 {
		return Statement{}, false
	}
	var top float64
	for i := 0; i < len(totals) && i < concentrationCount; i++ {
		top += totals[i].Value
	}
	return Statement{
		Title: "Concentracao",
		Body: fmt.Sprintf("top 3 municipios representam %s da arrecadacao",
			normalize.FormatPercent(share(top, d.Sum(dataset.ColAmount)))),
	}, true
}

func monthlyAnomalies(d *dataset.Dataset) (Statement, bool) {
	periods := d.PeriodTotals()
	if len(periods) <= anomalyMinPeriods {
		return Statement{}, false
	}
	n := metrics.CountTrue(metrics.IQROutliers(periodValues(periods), metrics.DefaultIQRMultiplier))
	if n == 0 {
		return Statement{}, false
	}
	return Statement{
		Title: "Alerta",
		Body:  fmt.Sprintf("%d mes(es) com arrecadacao atipica detectada", n),
	}, true
}

func periodValues(groups []dataset.Group) []float64 {
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Value
	}
	return out
}
