package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

var seasonalityCmd = &cobra.Command{
	Use:   "seasonality",
	Short: "Profile collection by calendar month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		s, err := metrics.SeasonalityOf(d)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), flagFormat, s, func(w *tabwriter.Writer) {
			formatSeasonality(w, s)
		})
	},
}

func formatSeasonality(w *tabwriter.Writer, s *metrics.Seasonality) {
	row(w, "MONTH", "MEAN", "STD", "CV", "INDEX", "N")
	for _, m := range s.Months {
		row(w, monthName(m.Month),
			normalize.FormatDecimal(m.Mean, 2),
			normalize.FormatDecimal(m.Std, 2),
			normalize.FormatPercent(m.CV),
			normalize.FormatDecimal(m.Index, 1),
			m.Count)
	}
	row(w)
	row(w, "Strongest", monthName(s.Strongest))
	row(w, "Weakest", monthName(s.Weakest))
}

func init() {
	rootCmd.AddCommand(seasonalityCmd)
}
