package metrics

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
)

// MonthStat summarises the amounts recorded in one calendar month across
// all years.
type MonthStat struct {
	Month int     `json:"month" yaml:"month"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Std   float64 `json:"std" yaml:"std"`
	Count int     `json:"count" yaml:"count"`
	// CV is the coefficient of variation in percent.
	CV float64 `json:"cv" yaml:"cv"`
	// Index is the month mean as a percentage of the overall mean.
	Index float64 `json:"index" yaml:"index"`
}

// Seasonality is the per-month profile of a dataset.
type Seasonality struct {
	Months      []MonthStat `json:"months" yaml:"months"`
	OverallMean float64     `json:"overall_mean" yaml:"overall_mean"`
	Strongest   int         `json:"strongest" yaml:"strongest"`
	Weakest     int         `json:"weakest" yaml:"weakest"`
}

// SeasonalityOf groups amounts by month ignoring the year. Months without
// amounts are omitted.
func SeasonalityOf(d *dataset.Dataset) (*Seasonality, error) {
	if !d.Has(dataset.ColMonth) {
		return nil, eris.Wrap(ErrInsufficientData, "metrics: dataset has no month column")
	}
	var byMonth [12][]float64
	for _, r := range d.Records {
		if r.Month == nil || math.IsNaN(r.Amount) {
			continue
		}
		byMonth[*r.Month-1] = append(byMonth[*r.Month-1], r.Amount)
	}

	overall, _ := meanStd(d.Values(dataset.ColAmount))
	s := &Seasonality{OverallMean: overall}
	for i, values := range byMonth {
		if len(values) == 0 {
			continue
		}
		mean, std := meanStd(values)
		ms := MonthStat{Month: i + 1, Mean: mean, Std: std, Count: len(values)}
		if mean != 0 {
			ms.CV = std / mean * 100
		}
		if overall != 0 && !math.IsNaN(overall) {
			ms.Index = mean / overall * 100
		}
		s.Months = append(s.Months, ms)
	}
	if len(s.Months) == 0 {
		return nil, eris.Wrap(ErrInsufficientData, "metrics: no monthly amounts")
	}

	strongest, weakest := s.Months[0], s.Months[0]
	for _, m := range s.Months[1:] {
		if m.Mean > strongest.Mean {
			strongest = m
		}
		if m.Mean < weakest.Mean {
			weakest = m
		}
	}
	s.Strongest, s.Weakest = strongest.Month, weakest.Month
	return s, nil
}
