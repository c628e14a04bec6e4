package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

// DefaultCorrelationTop is how many substances the correlation covers.
const DefaultCorrelationTop = 10

// Correlation relates the yearly totals of the largest substances.
type Correlation struct {
	Substances []string `json:"substances" yaml:"substances"`
	Years      []int    `json:"years" yaml:"years"`
	// Pivot[i][j] is the total of Substances[i] in Years[j].
	Pivot [][]float64 `json:"pivot" yaml:"pivot"`
	// Matrix[i][j] is the Pearson correlation of two substances across
	// years; undefined correlations are 0.
	Matrix [][]float64 `json:"matrix" yaml:"matrix"`
}

// SubstanceCorrelation pivots total amount by substance and year for the
// topN substances and correlates them.
func SubstanceCorrelation(d *dataset.Dataset, topN int) Correlation {
	if topN <= 0 {
		topN = DefaultCorrelationTop
	}
	top := d.Totals(dataset.ColSubstance, dataset.ColAmount)
	if len(top) > topN {
		top = top[:topN]
	}

	c := Correlation{Years: d.Years()}
	row := make(map[string]int, len(top))
	for i, g := range top {
		c.Substances = append(c.Substances, g.Key)
		c.Pivot = append(c.Pivot, make([]float64, len(c.Years)))
		row[g.Key] = i
	}
	col := make(map[int]int, len(c.Years))
	for j, y := range c.Years {
		col[y] = j
	}
	for _, r := range d.Records {
		i, ok := row[r.Substance]
		if !ok || math.IsNaN(r.Amount) {
			continue
		}
		c.Pivot[i][col[r.Year]] += r.Amount
	}

	c.Matrix = make([][]float64, len(top))
	for i := range c.Matrix {
		c.Matrix[i] = make([]float64, len(top))
		for j := range c.Matrix[i] {
			c.Matrix[i][j] = pearson(c.Pivot[i], c.Pivot[j])
		}
	}
	return c
}

func pearson(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
