package metrics

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// ProjectionSteps is how many periods past the series the trend projects.
const ProjectionSteps = 3

// Trend is an ordinary least squares fit of a series against its index.
type Trend struct {
	Slope      float64   `json:"slope" yaml:"slope"`
	Intercept  float64   `json:"intercept" yaml:"intercept"`
	R2         float64   `json:"r2" yaml:"r2"`
	Fitted     []float64 `json:"fitted" yaml:"fitted"`
	Projection []float64 `json:"projection" yaml:"projection"`
}

// At evaluates the fitted line at index x.
func (t *Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// LinearTrend fits series against 0..n-1. It needs at least three points.
func LinearTrend(series []float64) (*Trend, error) {
	n := len(series)
	if n < 3 {
		return nil, eris.Wrapf(ErrInsufficientData, "metrics: trend needs 3 points, got %d", n)
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, series, nil, false)
	t := &Trend{Slope: slope, Intercept: intercept}

	yMean := stat.Mean(series, nil)
	var ssRes, ssTot float64
	t.Fitted = make([]float64, n)
	for i, y := range series {
		f := t.At(xs[i])
		t.Fitted[i] = f
		ssRes += (y - f) * (y - f)
		ssTot += (y - yMean) * (y - yMean)
	}
	if ssTot != 0 {
		t.R2 = 1 - ssRes/ssTot
	}

	t.Projection = make([]float64, ProjectionSteps)
	for k := range t.Projection {
		t.Projection[k] = t.At(float64(n + k))
	}
	return t, nil
}
