package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Score the data quality of a CFEM export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		rep := metrics.Quality(d, cfg.Quality)
		return writeOutput(cmd.OutOrStdout(), flagFormat, rep, func(w *tabwriter.Writer) {
			formatQuality(w, rep)
		})
	},
}

func formatQuality(w *tabwriter.Writer, rep metrics.QualityReport) {
	row(w, "METRIC", "VALUE", "PENALTY")
	row(w, "Records", rep.Records, "")
	for _, m := range rep.Missing {
		row(w, "Missing "+m.Column, normalize.FormatPercent(m.Percent), "")
	}
	row(w, "Missing (all columns)", "", normalize.FormatDecimal(rep.Penalties.Missing, 1))
	row(w, "Duplicates", rep.Duplicates, normalize.FormatDecimal(rep.Penalties.Duplicates, 1))
	c := rep.Coverage
	row(w, "Coverage", normalize.FormatPercent(c.Completeness)+" ("+c.First+" to "+c.Last+")", normalize.FormatDecimal(rep.Penalties.Coverage, 1))
	row(w, "Gaps", c.Gaps, "")
	s := rep.Suspicious
	row(w, "Suspicious (neg/zero/extreme)", normalize.FormatPercent(rep.SuspiciousPercent), normalize.FormatDecimal(rep.Penalties.Suspicious, 1))
	row(w, "  negative", s.Negative, "")
	row(w, "  zero", s.Zero, "")
	row(w, "  extreme", s.Extreme, "")
	row(w, "SCORE", normalize.FormatDecimal(rep.Score, 1), "")
}

func init() {
	rootCmd.AddCommand(qualityCmd)
}
