// Package chart renders the static PNG charts embedded in diagnosis
// reports.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = eris.New("chart: no data")

// Default image size.
const (
	Width  = 8 * vg.Inch
	Height = 4.5 * vg.Inch
)

var (
	barColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	lineColor  = color.RGBA{R: 0, G: 100, B: 0, A: 255}
	trendColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// YearBars charts the total collected per year.
func YearBars(title string, years []dataset.YearTotal) (*plot.Plot, error) {
	if len(years) == 0 {
		return nil, ErrNoData
	}
	values := make(plotter.Values, len(years))
	labels := make([]string, len(years))
	for i, y := range years {
		values[i] = y.Value
		labels[i] = strconv.Itoa(y.Year)
	}
	return bars(title, "Ano", values, labels)
}

// SubstanceBars charts the top substances by total.
func SubstanceBars(title string, groups []dataset.Group, top int) (*plot.Plot, error) {
	if top > 0 && len(groups) > top {
		groups = groups[:top]
	}
	if len(groups) == 0 {
		return nil, ErrNoData
	}
	values := make(plotter.Values, len(groups))
	labels := make([]string, len(groups))
	for i, g := range groups {
		values[i] = g.Value
		labels[i] = g.Key
	}
	p, err := bars(title, "Substancia", values, labels)
	if err != nil {
		return nil, err
	}
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return p, nil
}

func bars(title, xLabel string, values plotter.Values, labels []string) (*plot.Plot, error) {
	p := newPlot(title, xLabel)

	b, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, eris.Wrap(err, "chart: bar chart")
	}
	b.Color = barColor
	b.LineStyle.Width = vg.Length(0)

	p.Add(b)
	p.NominalX(labels...)
	p.Y.Min = 0
	return p, nil
}

// MonthlyLine charts the per-period totals with the fitted trend and its
// projection overlaid. trend may be nil.
func MonthlyLine(title string, periods []dataset.Group, trend *metrics.Trend) (*plot.Plot, error) {
	if len(periods) == 0 {
		return nil, ErrNoData
	}
	p := newPlot(title, "Periodo")

	points := make(plotter.XYs, len(periods))
	for i, g := range periods {
		points[i].X = float64(i)
		points[i].Y = g.Value
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, eris.Wrap(err, "chart: line")
	}
	line.Color = lineColor
	line.Width = vg.Points(2)
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("Arrecadacao", line)

	if trend != nil {
		n := len(periods) + len(trend.Projection)
		fitted := make(plotter.XYs, n)
		for i := range fitted {
			fitted[i].X = float64(i)
			fitted[i].Y = trend.At(float64(i))
		}
		tl, err := plotter.NewLine(fitted)
		if err != nil {
			return nil, eris.Wrap(err, "chart: trend line")
		}
		tl.Color = trendColor
		tl.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(tl)
		p.Legend.Add("Tendencia", tl)
	}

	p.X.Tick.Marker = periodTicks(periods)
	p.Legend.Top = true
	return p, nil
}

// periodTicks labels roughly a dozen evenly spaced periods.
func periodTicks(periods []dataset.Group) plot.Ticker {
	step := max(1, len(periods)/12)
	return plot.TickerFunc(func(_, _ float64) []plot.Tick {
		var ticks []plot.Tick
		for i := 0; i < len(periods); i += step {
			ticks = append(ticks, plot.Tick{Value: float64(i), Label: periods[i].Key})
		}
		return ticks
	})
}

func newPlot(title, xLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Arrecadacao"
	p.Y.Tick.Marker = moneyTicks{}
	return p
}

// moneyTicks labels the default ticks in compact reais.
type moneyTicks struct{}

func (moneyTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = Compact(ticks[i].Value)
		}
	}
	return ticks
}

// Compact renders an amount as "R$ 1,2 mi" style text.
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("R$ %s bi", normalize.FormatDecimal(v/1e9, 1))
	case abs >= 1e6:
		return fmt.Sprintf("R$ %s mi", normalize.FormatDecimal(v/1e6, 1))
	case abs >= 1e3:
		return fmt.Sprintf("R$ %s mil", normalize.FormatDecimal(v/1e3, 1))
	}
	return "R$ " + normalize.FormatDecimal(v, 0)
}

// WritePNG renders p at the default size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return eris.Wrap(err, "chart: png writer")
	}
	_, err = wt.WriteTo(w)
	return eris.Wrap(err, "chart: write png")
}

// SavePNG renders p to path at the default size.
func SavePNG(p *plot.Plot, path string) error {
	return eris.Wrapf(p.Save(Width, Height, path), "chart: save %s", path)
}
