package metrics

import (
	"math"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

// Penalty scales a percentage into score points, capped at Cap.
type Penalty struct {
	Factor float64 `mapstructure:"factor" yaml:"factor" json:"factor"`
	Cap    float64 `mapstructure:"cap" yaml:"cap" json:"cap"`
}

func (p Penalty) apply(pct float64) float64 {
	return math.Min(p.Cap, pct*p.Factor)
}

// QualityWeights are the calibration constants of the quality score.
type QualityWeights struct {
	Missing    Penalty `mapstructure:"missing" yaml:"missing" json:"missing"`
	Duplicates Penalty `mapstructure:"duplicates" yaml:"duplicates" json:"duplicates"`
	Coverage   Penalty `mapstructure:"coverage" yaml:"coverage" json:"coverage"`
	Suspicious Penalty `mapstructure:"suspicious" yaml:"suspicious" json:"suspicious"`
	// Sigma is the distance from the mean, in sample standard deviations,
	// beyond which an amount counts as an extreme outlier.
	Sigma float64 `mapstructure:"sigma" yaml:"sigma" json:"sigma"`
}

// DefaultQualityWeights returns the standard calibration.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		Missing:    Penalty{Factor: 0.5, Cap: 30},
		Duplicates: Penalty{Factor: 2, Cap: 20},
		Coverage:   Penalty{Factor: 0.2, Cap: 20},
		Suspicious: Penalty{Factor: 3, Cap: 30},
		Sigma:      3,
	}
}

// MissingColumn is the missingness of one column.
type MissingColumn struct {
	Column  string  `json:"column" yaml:"column"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Coverage describes how many months between the first and last period
// carry data.
type Coverage struct {
	First        string  `json:"first,omitempty" yaml:"first,omitempty"`
	Last         string  `json:"last,omitempty" yaml:"last,omitempty"`
	Expected     int     `json:"expected" yaml:"expected"`
	Observed     int     `json:"observed" yaml:"observed"`
	Gaps         int     `json:"gaps" yaml:"gaps"`
	Completeness float64 `json:"completeness" yaml:"completeness"`
}

// Suspicious counts amounts worth a second look.
type Suspicious struct {
	Negative int `json:"negative" yaml:"negative"`
	Zero     int `json:"zero" yaml:"zero"`
	Extreme  int `json:"extreme" yaml:"extreme"`
}

// Penalties lists the points deducted by each term.
type Penalties struct {
	Missing    float64 `json:"missing" yaml:"missing"`
	Duplicates float64 `json:"duplicates" yaml:"duplicates"`
	Coverage   float64 `json:"coverage" yaml:"coverage"`
	Suspicious float64 `json:"suspicious" yaml:"suspicious"`
}

// QualityReport bundles the data-quality metrics of a dataset.
type QualityReport struct {
	Records           int             `json:"records" yaml:"records"`
	Missing           []MissingColumn `json:"missing" yaml:"missing"`
	Duplicates        int             `json:"duplicates" yaml:"duplicates"`
	DuplicatePercent  float64         `json:"duplicate_percent" yaml:"duplicate_percent"`
	Coverage          Coverage        `json:"coverage" yaml:"coverage"`
	Suspicious        Suspicious      `json:"suspicious" yaml:"suspicious"`
	SuspiciousPercent float64         `json:"suspicious_percent" yaml:"suspicious_percent"`
	Penalties         Penalties       `json:"penalties" yaml:"penalties"`
	Score             float64         `json:"score" yaml:"score"`
}

// Quality scores d from 0 to 100. Each penalty term is capped
// independently; an empty dataset scores without dividing by zero.
func Quality(d *dataset.Dataset, w QualityWeights) QualityReport {
	rep := QualityReport{Records: d.Len()}
	total := float64(rep.Records)

	pct := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / total * 100
	}

	// Missingness per column.
	cols := d.Columns()
	var missingSum float64
	for i, name := range cols {
		n := 0
		for _, r := range d.Records {
			if _, ok := d.Cell(r, i); !ok {
				n++
			}
		}
		mc := MissingColumn{Column: name, Count: n, Percent: pct(n)}
		rep.Missing = append(rep.Missing, mc)
		missingSum += mc.Percent
	}
	var missingMean float64
	if len(cols) > 0 {
		missingMean = missingSum / float64(len(cols))
	}

	// Exact full-row duplicates beyond the first occurrence.
	seen := make(map[string]struct{}, d.Len())
	for _, r := range d.Records {
		k := d.RowKey(r)
		if _, dup := seen[k]; dup {
			rep.Duplicates++
			continue
		}
		seen[k] = struct{}{}
	}
	rep.DuplicatePercent = pct(rep.Duplicates)

	rep.Coverage = coverage(d)

	// Suspicious amounts.
	amounts := d.Values(dataset.ColAmount)
	mean, std := meanStd(amounts)
	for _, v := range amounts {
		if v < 0 {
			rep.Suspicious.Negative++
		}
		if v == 0 {
			rep.Suspicious.Zero++
		}
		if v > mean+w.Sigma*std || v < mean-w.Sigma*std {
			rep.Suspicious.Extreme++
		}
	}
	rep.SuspiciousPercent = pct(rep.Suspicious.Negative + rep.Suspicious.Extreme)

	rep.Penalties = Penalties{
		Missing:    w.Missing.apply(missingMean),
		Duplicates: w.Duplicates.apply(rep.DuplicatePercent),
		Coverage:   w.Coverage.apply(100 - rep.Coverage.Completeness),
		Suspicious: w.Suspicious.apply(rep.SuspiciousPercent),
	}
	score := 100 - rep.Penalties.Missing - rep.Penalties.Duplicates -
		rep.Penalties.Coverage - rep.Penalties.Suspicious
	rep.Score = math.Max(0, math.Min(100, score))
	return rep
}

func coverage(d *dataset.Dataset) Coverage {
	periods := d.Distinct(dataset.ColPeriod)
	if len(periods) == 0 {
		return Coverage{}
	}
	first, last := periods[0], periods[len(periods)-1]
	fy, fm, _ := dataset.ParsePeriod(first)
	ly, lm, _ := dataset.ParsePeriod(last)
	expected := (ly-fy)*12 + (lm - fm) + 1
	return Coverage{
		First:        first,
		Last:         last,
		Expected:     expected,
		Observed:     len(periods),
		Gaps:         expected - len(periods),
		Completeness: float64(len(periods)) / float64(expected) * 100,
	}
}
