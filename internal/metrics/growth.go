// Package metrics implements the descriptive analyses run over a cleaned
// CFEM dataset. Every function is pure and recomputes from its input.
package metrics

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when an analysis lacks the points it
// needs to produce a result.
var ErrInsufficientData = eris.New("insufficient data")

// DefaultIQRMultiplier is the Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// GrowthRate returns the percentage change from previous to current. It
// returns 0 when previous is zero or missing, so 0 does not always mean
// "no change".
func GrowthRate(current, previous float64) float64 {
	if previous == 0 || math.IsNaN(previous) {
		return 0
	}
	return (current - previous) / previous * 100
}

// Quantile returns the p-quantile of sorted using linear interpolation
// between closest ranks, the convention of common dataframe libraries.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Fences returns the lower and upper IQR bounds of series. Missing values
// are ignored.
func Fences(series []float64, multiplier float64) (lower, upper float64) {
	clean := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	slices.Sort(clean)
	q1 := Quantile(clean, 0.25)
	q3 := Quantile(clean, 0.75)
	iqr := q3 - q1
	return q1 - multiplier*iqr, q3 + multiplier*iqr
}

// IQROutliers flags the values strictly outside the IQR fences.
func IQROutliers(series []float64, multiplier float64) []bool {
	flags := make([]bool, len(series))
	lower, upper := Fences(series, multiplier)
	for i, v := range series {
		flags[i] = v < lower || v > upper
	}
	return flags
}

// CountTrue returns how many flags are set.
func CountTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// meanStd returns the mean and sample standard deviation of values. The
// deviation is 0 when fewer than two values are present.
func meanStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return math.NaN(), 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

// CoefficientOfVariation returns std/mean as a percentage. ok is false when
// the mean is zero or values is empty, leaving the ratio undefined.
func CoefficientOfVariation(values []float64) (cv float64, ok bool) {
	mean, std := meanStd(values)
	if mean == 0 || math.IsNaN(mean) {
		return 0, false
	}
	return std / mean * 100, true
}
