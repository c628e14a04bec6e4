package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

func month(m int) *int { return &m }

func rec(year, m int, uf, muni, subst string, amount float64) dataset.Record {
	r := dataset.Record{
		Year:         year,
		State:        uf,
		StateRaw:     uf,
		Municipality: muni,
		Substance:    subst,
		PayerType:    "PJ",
		Amount:       amount,
		Quantity:     1,
	}
	if m > 0 {
		r.Month = month(m)
		r.Period = dataset.PeriodKey(year, m)
	}
	return r
}

func TestGrowthRate(t *testing.T) {
	assert.InDelta(t, 50.0, GrowthRate(150, 100), 1e-9)
	assert.InDelta(t, -25.0, GrowthRate(75, 100), 1e-9)
	assert.Equal(t, 0.0, GrowthRate(10, 0))
	assert.Equal(t, 0.0, GrowthRate(10, math.NaN()))
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, Quantile(sorted, 0.75), 1e-9)
	assert.Equal(t, 4.0, Quantile(sorted, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.5))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestIQROutliers(t *testing.T) {
	series := []float64{10, 11, 12, 13, 12, 11, 100, -50}
	flags := IQROutliers(series, DefaultIQRMultiplier)
	assert.Equal(t, []bool{false, false, false, false, false, false, true, true}, flags)
	assert.Equal(t, 2, CountTrue(flags))
}

func TestIQROutliers_Constant(t *testing.T) {
	flags := IQROutliers([]float64{5, 5, 5}, DefaultIQRMultiplier)
	assert.Equal(t, 0, CountTrue(flags))
	assert.Empty(t, IQROutliers(nil, DefaultIQRMultiplier))
}

func TestCoefficientOfVariation(t *testing.T) {
	cv, ok := CoefficientOfVariation([]float64{1, 2, 3})
	require.True(t, ok)
	assert.InDelta(t, 50.0, cv, 1e-9)

	cv, ok = CoefficientOfVariation([]float64{4})
	require.True(t, ok)
	assert.Equal(t, 0.0, cv)

	_, ok = CoefficientOfVariation([]float64{0, 0})
	assert.False(t, ok)
	_, ok = CoefficientOfVariation([]float64{-1, 1})
	assert.False(t, ok)
	_, ok = CoefficientOfVariation(nil)
	assert.False(t, ok)
}

func TestLinearTrend_PerfectFit(t *testing.T) {
	tr, err := LinearTrend([]float64{10, 20, 30})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, tr.Slope, 1e-9)
	assert.InDelta(t, 10.0, tr.Intercept, 1e-9)
	assert.InDelta(t, 1.0, tr.R2, 1e-9)
	assert.InDeltaSlice(t, []float64{10, 20, 30}, tr.Fitted, 1e-9)
	assert.InDeltaSlice(t, []float64{40, 50, 60}, tr.Projection, 1e-9)
}

func TestLinearTrend_Flat(t *testing.T) {
	tr, err := LinearTrend([]float64{5, 5, 5, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tr.Slope, 1e-9)
	assert.Equal(t, 0.0, tr.R2)
}

func TestLinearTrend_InsufficientData(t *testing.T) {
	for _, series := range [][]float64{nil, {1}, {1, 2}} {
		tr, err := LinearTrend(series)
		assert.Nil(t, tr)
		assert.True(t, errors.Is(err, ErrInsufficientData))
	}
}

func TestQuality_PerfectDataset(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2023, 1, "MG", "A", "FERRO", 10),
		rec(2023, 2, "MG", "B", "FERRO", 11),
		rec(2023, 3, "MG", "C", "OURO", 12),
	})
	rep := Quality(ds, DefaultQualityWeights())
	assert.Equal(t, 0, rep.Duplicates)
	assert.Equal(t, 3, rep.Coverage.Expected)
	assert.Equal(t, 0, rep.Coverage.Gaps)
	assert.InDelta(t, 100.0, rep.Coverage.Completeness, 1e-9)
	assert.InDelta(t, 100.0, rep.Score, 1e-9)
}

func TestQuality_EmptyDataset(t *testing.T) {
	rep := Quality(dataset.FromRecords(nil), DefaultQualityWeights())
	assert.Equal(t, 0, rep.Records)
	assert.Equal(t, 0.0, rep.Coverage.Completeness)
	assert.InDelta(t, 80.0, rep.Score, 1e-9)
	assert.GreaterOrEqual(t, rep.Score, 0.0)
	assert.LessOrEqual(t, rep.Score, 100.0)
}

func TestQuality_AllDuplicates(t *testing.T) {
	r := rec(2023, 1, "MG", "A", "FERRO", 10)
	ds := dataset.FromRecords([]dataset.Record{r, r, r, r})
	rep := Quality(ds, DefaultQualityWeights())
	assert.Equal(t, 3, rep.Duplicates)
	assert.InDelta(t, 75.0, rep.DuplicatePercent, 1e-9)
	assert.Equal(t, 20.0, rep.Penalties.Duplicates)
	assert.InDelta(t, 80.0, rep.Score, 1e-9)
}

func TestQuality_GapsMissingAndSuspicious(t *testing.T) {
	records := []dataset.Record{
		rec(2022, 1, "MG", "A", "FERRO", 10),
		rec(2022, 12, "MG", "B", "FERRO", -5),
		rec(2023, 0, "", "C", "", 0),
	}
	records[2].StateRaw = ""
	rep := Quality(dataset.FromRecords(records), DefaultQualityWeights())

	assert.Equal(t, 12, rep.Coverage.Expected)
	assert.Equal(t, 2, rep.Coverage.Observed)
	assert.Equal(t, 10, rep.Coverage.Gaps)
	assert.Equal(t, 1, rep.Suspicious.Negative)
	assert.Equal(t, 1, rep.Suspicious.Zero)

	var stateMissing MissingColumn
	for _, m := range rep.Missing {
		if m.Column == "UF" {
			stateMissing = m
		}
	}
	assert.Equal(t, 1, stateMissing.Count)
	assert.InDelta(t, 100.0/3, stateMissing.Percent, 1e-9)
	assert.GreaterOrEqual(t, rep.Score, 0.0)
	assert.Less(t, rep.Score, 100.0)
}

func TestQuality_ExtremeOutlier(t *testing.T) {
	var records []dataset.Record
	for i := 0; i < 20; i++ {
		records = append(records, rec(2023, 1+i%12, "MG", "A", "FERRO", 10+float64(i%3)))
	}
	records = append(records, rec(2023, 1, "MG", "A", "FERRO", 10000))
	rep := Quality(dataset.FromRecords(records), DefaultQualityWeights())
	assert.Equal(t, 1, rep.Suspicious.Extreme)
}

func TestQuality_ScoreFlooredAtZero(t *testing.T) {
	w := DefaultQualityWeights()
	w.Duplicates = Penalty{Factor: 100, Cap: 500}
	r := rec(2023, 1, "MG", "A", "FERRO", 10)
	rep := Quality(dataset.FromRecords([]dataset.Record{r, r}), w)
	assert.Equal(t, 0.0, rep.Score)
}

func paretoFixture() *dataset.Dataset {
	return dataset.FromRecords([]dataset.Record{
		rec(2023, 1, "MG", "A", "FERRO", 500),
		rec(2023, 1, "MG", "B", "OURO", 350),
		rec(2023, 1, "MG", "C", "AREIA", 80),
		rec(2023, 1, "MG", "D", "BRITA", 40),
		rec(2023, 1, "MG", "E", "CALCARIO", 30),
	})
}

func TestParetoAnalysis_CumulativeReaches100(t *testing.T) {
	p := ParetoAnalysis(paretoFixture(), dataset.ColSubstance, dataset.ColAmount, 0)
	require.Len(t, p.Rows, 5)
	assert.Equal(t, "FERRO", p.Rows[0].Group)
	assert.InDelta(t, 1000.0, p.Total, 1e-9)

	for i := 1; i < len(p.Rows); i++ {
		assert.GreaterOrEqual(t, p.Rows[i].Cumulative, p.Rows[i-1].Cumulative)
	}
	assert.InDelta(t, 100.0, p.Rows[len(p.Rows)-1].Cumulative, 1e-9)
	assert.Equal(t, 1, p.Cutoff)
}

func TestParetoAnalysis_TopNUsesGrandTotal(t *testing.T) {
	p := ParetoAnalysis(paretoFixture(), dataset.ColSubstance, dataset.ColAmount, 1)
	require.Len(t, p.Rows, 1)
	assert.InDelta(t, 50.0, p.Rows[0].Percent, 1e-9)
	// Threshold never reached within the top rows.
	assert.Equal(t, 0, p.Cutoff)
}

func TestParetoAnalysis_Empty(t *testing.T) {
	p := ParetoAnalysis(dataset.FromRecords(nil), dataset.ColSubstance, dataset.ColAmount, 10)
	assert.Empty(t, p.Rows)
	assert.Equal(t, -1, p.Cutoff)
}

func TestSeasonalityOf(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2022, 1, "MG", "A", "FERRO", 100),
		rec(2023, 1, "MG", "A", "FERRO", 300),
		rec(2022, 6, "MG", "A", "FERRO", 50),
		rec(2023, 0, "MG", "A", "FERRO", 150),
	})
	s, err := SeasonalityOf(ds)
	require.NoError(t, err)
	require.Len(t, s.Months, 2)

	jan := s.Months[0]
	assert.Equal(t, 1, jan.Month)
	assert.InDelta(t, 200.0, jan.Mean, 1e-9)
	assert.Equal(t, 2, jan.Count)
	assert.InDelta(t, math.Sqrt(20000), jan.Std, 1e-9)
	assert.InDelta(t, 200.0/150*100, jan.Index, 1e-9)

	jun := s.Months[1]
	assert.Equal(t, 0.0, jun.Std)
	assert.Equal(t, 1, s.Strongest)
	assert.Equal(t, 6, s.Weakest)
}

func TestSeasonalityOf_NoMonths(t *testing.T) {
	_, err := SeasonalityOf(dataset.FromRecords([]dataset.Record{rec(2023, 0, "MG", "A", "X", 1)}))
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestSubstanceCorrelation(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2021, 1, "MG", "A", "FERRO", 10),
		rec(2022, 1, "MG", "A", "FERRO", 20),
		rec(2023, 1, "MG", "A", "FERRO", 30),
		rec(2021, 1, "MG", "A", "OURO", 3),
		rec(2022, 1, "MG", "A", "OURO", 2),
		rec(2023, 1, "MG", "A", "OURO", 1),
		rec(2021, 1, "MG", "A", "AREIA", 5),
		rec(2022, 1, "MG", "A", "AREIA", 5),
		rec(2023, 1, "MG", "A", "AREIA", 5),
	})
	c := SubstanceCorrelation(ds, 0)
	assert.Equal(t, []string{"FERRO", "AREIA", "OURO"}, c.Substances)
	assert.Equal(t, []int{2021, 2022, 2023}, c.Years)
	assert.Equal(t, []float64{10, 20, 30}, c.Pivot[0])
	assert.InDelta(t, 1.0, c.Matrix[0][0], 1e-9)
	assert.InDelta(t, -1.0, c.Matrix[0][2], 1e-9)
	// Constant series have no defined correlation.
	assert.Equal(t, 0.0, c.Matrix[0][1])

	top := SubstanceCorrelation(ds, 1)
	assert.Len(t, top.Substances, 1)
}

func TestOverviewOf(t *testing.T) {
	ds := dataset.FromRecords([]dataset.Record{
		rec(2022, 1, "MG", "A", "FERRO", 100),
		rec(2022, 1, "MG", "B", "OURO", 50),
		rec(2023, 2, "PA", "C", "FERRO", 300),
	})
	o := OverviewOf(ds)
	assert.Equal(t, 450.0, o.Total)
	assert.InDelta(t, 225.0, o.MonthlyMean, 1e-9)
	assert.Equal(t, 3, o.Records)
	assert.Equal(t, 3, o.Municipalities)
	assert.Equal(t, 2, o.States)
	assert.Equal(t, 2, o.Substances)
	assert.Equal(t, 2022, o.FirstYear)
	assert.Equal(t, 2023, o.LastYear)
	require.Len(t, o.ByPayerType, 1)
}

func TestMunicipalityProfile(t *testing.T) {
	state := dataset.FromRecords([]dataset.Record{
		rec(2023, 1, "MG", "ITABIRA", "FERRO", 600),
		rec(2023, 2, "MG", "ITABIRA", "OURO", 400),
		rec(2023, 1, "MG", "MARIANA", "FERRO", 2000),
		rec(2023, 1, "MG", "NOVA LIMA", "OURO", 1000),
	})
	p, err := MunicipalityProfile(state, "ITABIRA", "MG", DefaultDistribution())
	require.NoError(t, err)

	assert.Equal(t, 1000.0, p.Total)
	assert.Equal(t, 2, p.Records)
	assert.Equal(t, 500.0, p.MeanPerRecord)
	assert.Equal(t, 2, p.Substances)
	assert.Equal(t, 2, p.Rank)
	assert.Equal(t, 3, p.StateMunicipalities)
	assert.InDelta(t, 25.0, p.StateShare, 1e-9)
	assert.Equal(t, "FERRO", p.TopSubstances[0].Key)
	assert.InDelta(t, 600.0, p.Split.Municipality, 1e-9)
	assert.InDelta(t, 150.0, p.Split.State, 1e-9)
	assert.InDelta(t, 150.0, p.Split.Union, 1e-9)
	assert.InDelta(t, 100.0, p.Split.Affected, 1e-9)
	assert.InDelta(t, 150.0, p.Split.Recoverable, 1e-9)
	assert.InDelta(t, 90.0, p.Split.RecoverableMunicipal, 1e-9)
	assert.InDelta(t, 1150.0, p.Split.TotalWithRecovery, 1e-9)

	_, err = MunicipalityProfile(state, "BELO HORIZONTE", "MG", DefaultDistribution())
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestRank(t *testing.T) {
	state := dataset.FromRecords([]dataset.Record{
		rec(2023, 1, "MG", "A", "X", 1),
		rec(2023, 1, "MG", "B", "X", 3),
	})
	pos, total := Rank(state, "A")
	assert.Equal(t, 2, pos)
	assert.Equal(t, 2, total)
	pos, _ = Rank(state, "Z")
	assert.Equal(t, 0, pos)
}
