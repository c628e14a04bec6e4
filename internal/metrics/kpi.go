package metrics

import (
	"github.com/rotisserie/eris"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

// Overview holds the headline indicators of a dataset.
type Overview struct {
	Total          float64         `json:"total" yaml:"total"`
	MonthlyMean    float64         `json:"monthly_mean" yaml:"monthly_mean"`
	Records        int             `json:"records" yaml:"records"`
	Municipalities int             `json:"municipalities" yaml:"municipalities"`
	States         int             `json:"states" yaml:"states"`
	Substances     int             `json:"substances" yaml:"substances"`
	FirstYear      int             `json:"first_year" yaml:"first_year"`
	LastYear       int             `json:"last_year" yaml:"last_year"`
	ByPayerType    []dataset.Group `json:"by_payer_type" yaml:"by_payer_type"`
}

// OverviewOf computes the headline indicators of d. MonthlyMean is the
// mean of the per-period totals.
func OverviewOf(d *dataset.Dataset) Overview {
	o := Overview{
		Total:          d.Sum(dataset.ColAmount),
		Records:        d.Len(),
		Municipalities: len(d.Distinct(dataset.ColMunicipality)),
		States:         len(d.Distinct(dataset.ColState)),
		Substances:     len(d.Distinct(dataset.ColSubstance)),
		ByPayerType:    d.Totals(dataset.ColPayerType, dataset.ColAmount),
	}
	if years := d.Years(); len(years) > 0 {
		o.FirstYear, o.LastYear = years[0], years[len(years)-1]
	}
	if periods := d.PeriodTotals(); len(periods) > 0 {
		var sum float64
		for _, p := range periods {
			sum += p.Value
		}
		o.MonthlyMean = sum / float64(len(periods))
	}
	return o
}

// Rank returns the 1-based position of municipality among the
// municipalities of state ranked by total amount, and how many there are.
// position is 0 when municipality is absent.
func Rank(state *dataset.Dataset, municipality string) (position, total int) {
	ranking := state.Totals(dataset.ColMunicipality, dataset.ColAmount)
	for i, g := range ranking {
		if g.Key == municipality {
			return i + 1, len(ranking)
		}
	}
	return 0, len(ranking)
}

// Distribution holds the legal shares of CFEM revenue.
type Distribution struct {
	Municipality float64 `mapstructure:"municipality" yaml:"municipality" json:"municipality"`
	State        float64 `mapstructure:"state" yaml:"state" json:"state"`
	Union        float64 `mapstructure:"union" yaml:"union" json:"union"`
	Affected     float64 `mapstructure:"affected" yaml:"affected" json:"affected"`
	// Recoverable is the estimated share of unpaid revenue that could be
	// recovered.
	Recoverable float64 `mapstructure:"recoverable" yaml:"recoverable" json:"recoverable"`
}

// DefaultDistribution returns the statutory split.
func DefaultDistribution() Distribution {
	return Distribution{
		Municipality: 0.60,
		State:        0.15,
		Union:        0.15,
		Affected:     0.10,
		Recoverable:  0.15,
	}
}

// Split is a total divided according to a Distribution.
type Split struct {
	Municipality         float64 `json:"municipality" yaml:"municipality"`
	State                float64 `json:"state" yaml:"state"`
	Union                float64 `json:"union" yaml:"union"`
	Affected             float64 `json:"affected" yaml:"affected"`
	Recoverable          float64 `json:"recoverable" yaml:"recoverable"`
	RecoverableMunicipal float64 `json:"recoverable_municipal" yaml:"recoverable_municipal"`
	TotalWithRecovery    float64 `json:"total_with_recovery" yaml:"total_with_recovery"`
}

// Apply splits total.
func (d Distribution) Apply(total float64) Split {
	recoverable := total * d.Recoverable
	return Split{
		Municipality:         total * d.Municipality,
		State:                total * d.State,
		Union:                total * d.Union,
		Affected:             total * d.Affected,
		Recoverable:          recoverable,
		RecoverableMunicipal: recoverable * d.Municipality,
		TotalWithRecovery:    total + recoverable,
	}
}

// Profile is the diagnosis of one municipality within its state.
type Profile struct {
	Municipality        string          `json:"municipality" yaml:"municipality"`
	State               string          `json:"state" yaml:"state"`
	Total               float64         `json:"total" yaml:"total"`
	Records             int             `json:"records" yaml:"records"`
	MeanPerRecord       float64         `json:"mean_per_record" yaml:"mean_per_record"`
	Substances          int             `json:"substances" yaml:"substances"`
	Rank                int             `json:"rank" yaml:"rank"`
	StateMunicipalities int             `json:"state_municipalities" yaml:"state_municipalities"`
	StateShare          float64         `json:"state_share" yaml:"state_share"`
	TopSubstances       []dataset.Group `json:"top_substances" yaml:"top_substances"`
	Split               Split           `json:"split" yaml:"split"`
}

// TopSubstanceCount is how many substances a profile lists.
const TopSubstanceCount = 5

// MunicipalityProfile profiles municipality using the records of its
// state.
func MunicipalityProfile(state *dataset.Dataset, municipality, uf string, dist Distribution) (*Profile, error) {
	muni := state.Where(func(r dataset.Record) bool { return r.Municipality == municipality })
	if muni.Len() == 0 {
		return nil, eris.Wrapf(ErrInsufficientData, "metrics: no records for %q in %s", municipality, uf)
	}

	p := &Profile{
		Municipality: municipality,
		State:        uf,
		Total:        muni.Sum(dataset.ColAmount),
		Records:      muni.Len(),
		Substances:   len(muni.Distinct(dataset.ColSubstance)),
	}
	if amounts := muni.Values(dataset.ColAmount); len(amounts) > 0 {
		mean, _ := meanStd(amounts)
		p.MeanPerRecord = mean
	}
	p.Rank, p.StateMunicipalities = Rank(state, municipality)
	if stateTotal := state.Sum(dataset.ColAmount); stateTotal != 0 {
		p.StateShare = p.Total / stateTotal * 100
	}

	p.TopSubstances = muni.Totals(dataset.ColSubstance, dataset.ColAmount)
	if len(p.TopSubstances) > TopSubstanceCount {
		p.TopSubstances = p.TopSubstances[:TopSubstanceCount]
	}
	p.Split = dist.Apply(p.Total)
	return p, nil
}
