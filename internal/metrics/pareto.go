package metrics

import (
	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

// ParetoThreshold is the cumulative share that marks the concentration
// cutoff.
const ParetoThreshold = 80.0

// ParetoRow is one ranked group.
type ParetoRow struct {
	Group      string  `json:"group" yaml:"group"`
	Value      float64 `json:"value" yaml:"value"`
	Percent    float64 `json:"percent" yaml:"percent"`
	Cumulative float64 `json:"cumulative" yaml:"cumulative"`
}

// Pareto is the ranked concentration of a value across groups.
type Pareto struct {
	Rows  []ParetoRow `json:"rows" yaml:"rows"`
	Total float64     `json:"total" yaml:"total"`
	// Cutoff is the index of the first row whose cumulative share reaches
	// ParetoThreshold, the last row when none does, or -1 without rows.
	Cutoff int `json:"cutoff" yaml:"cutoff"`
}

// ParetoAnalysis sums value by group, keeps the topN largest (all when
// topN <= 0) and computes each group's share of the grand total, not of the
// topN subtotal.
func ParetoAnalysis(d *dataset.Dataset, group, value dataset.Column, topN int) Pareto {
	groups := d.Totals(group, value)

	var total float64
	for _, g := range groups {
		total += g.Value
	}
	if topN > 0 && topN < len(groups) {
		groups = groups[:topN]
	}

	p := Pareto{Total: total, Cutoff: -1, Rows: make([]ParetoRow, 0, len(groups))}
	var cumulative float64
	for i, g := range groups {
		var share float64
		if total != 0 {
			share = g.Value / total * 100
		}
		cumulative += share
		p.Rows = append(p.Rows, ParetoRow{
			Group:      g.Key,
			Value:      g.Value,
			Percent:    share,
			Cumulative: cumulative,
		})
		if p.Cutoff < 0 && cumulative >= ParetoThreshold {
			p.Cutoff = i
		}
	}
	if p.Cutoff < 0 && len(p.Rows) > 0 {
		p.Cutoff = len(p.Rows) - 1
	}
	return p
}
