package main

import (
	"errors"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// trendResult pairs a series with its fit. Trend is nil when the series
// is too short.
type trendResult struct {
	Labels []string       `json:"labels" yaml:"labels"`
	Values []float64      `json:"values" yaml:"values"`
	Trend  *metrics.Trend `json:"trend" yaml:"trend"`
}

// series returns the per-period or per-year totals of d.
func series(d *dataset.Dataset, by string) (labels []string, values []float64, err error) {
	switch by {
	case "period":
		for _, g := range d.PeriodTotals() {
			labels = append(labels, g.Key)
			values = append(values, g.Value)
		}
	case "year":
		for _, y := range d.YearTotals() {
			labels = append(labels, strconv.Itoa(y.Year))
			values = append(values, y.Value)
		}
	default:
		return nil, nil, eris.Errorf("--by must be period or year, got %q", by)
	}
	return labels, values, nil
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a linear trend to the collection series and project it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		by, _ := cmd.Flags().GetString("by")
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		labels, values, err := series(d, by)
		if err != nil {
			return err
		}
		res := trendResult{Labels: labels, Values: values}
		res.Trend, err = metrics.LinearTrend(values)
		if err != nil && !errors.Is(err, metrics.ErrInsufficientData) {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), flagFormat, res, func(w *tabwriter.Writer) {
			formatTrend(w, res)
		})
	},
}

func formatTrend(w *tabwriter.Writer, res trendResult) {
	if res.Trend == nil {
		row(w, "Trend", "insufficient data (need 3 points, got "+strconv.Itoa(len(res.Values))+")")
		return
	}
	t := res.Trend
	row(w, "Slope", normalize.FormatDecimal(t.Slope, 2))
	row(w, "Intercept", normalize.FormatDecimal(t.Intercept, 2))
	row(w, "R2", normalize.FormatDecimal(t.R2, 4))
	row(w)
	row(w, "POINT", "VALUE", "FITTED")
	for i, l := range res.Labels {
		row(w, l, normalize.FormatDecimal(res.Values[i], 2), normalize.FormatDecimal(t.Fitted[i], 2))
	}
	for i, p := range t.Projection {
		row(w, "+"+strconv.Itoa(i+1), "", normalize.FormatDecimal(p, 2))
	}
}

func init() {
	trendCmd.Flags().String("by", "period", "series granularity: period or year")
	rootCmd.AddCommand(trendCmd)
}
