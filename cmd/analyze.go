package main

import (
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/insight"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// analysis is the summary printed by analyze.
type analysis struct {
	Overview     metrics.Overview    `json:"overview" yaml:"overview"`
	Encoding     string              `json:"encoding" yaml:"encoding"`
	Lossy        bool                `json:"lossy" yaml:"lossy"`
	QualityScore float64             `json:"quality_score" yaml:"quality_score"`
	TopStates    []dataset.Group     `json:"top_states" yaml:"top_states"`
	Insights     []insight.Statement `json:"insights" yaml:"insights"`
}

const analyzeTopStates = 5

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize a CFEM export",
	Long:  "Loads and cleans the primary dataset, then prints the headline indicators, the quality score and the generated insights.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		a := analysis{
			Overview:     metrics.OverviewOf(d),
			Encoding:     string(d.Encoding),
			Lossy:        d.Lossy,
			QualityScore: metrics.Quality(d, cfg.Quality).Score,
			TopStates:    d.ValidStates().Totals(dataset.ColState, dataset.ColAmount),
			Insights:     insight.Global(d),
		}
		if len(a.TopStates) > analyzeTopStates {
			a.TopStates = a.TopStates[:analyzeTopStates]
		}
		return writeOutput(cmd.OutOrStdout(), flagFormat, a, func(w *tabwriter.Writer) {
			formatAnalysis(w, a)
		})
	},
}

func formatAnalysis(w *tabwriter.Writer, a analysis) {
	o := a.Overview
	row(w, "INDICATOR", "VALUE")
	row(w, "Total collected", normalize.FormatBRL(o.Total))
	row(w, "Monthly mean", normalize.FormatBRL(o.MonthlyMean))
	row(w, "Records", o.Records)
	row(w, "Municipalities", o.Municipalities)
	row(w, "States", o.States)
	row(w, "Substances", o.Substances)
	if o.FirstYear > 0 {
		row(w, "Years", formatYears(o.FirstYear, o.LastYear))
	}
	row(w, "Encoding", a.Encoding)
	if a.Lossy {
		row(w, "Lossy decode", "yes")
	}
	row(w, "Quality score", normalize.FormatDecimal(a.QualityScore, 1))
	for _, g := range o.ByPayerType {
		row(w, "Payer "+g.Key, normalize.FormatBRL(g.Value))
	}
	for i, g := range a.TopStates {
		row(w, "State #"+strconv.Itoa(i+1), g.Key+" "+normalize.FormatBRL(g.Value))
	}
	for _, s := range a.Insights {
		row(w, s.Title, s.Body)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
