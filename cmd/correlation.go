package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

var correlationCmd = &cobra.Command{
	Use:   "correlation",
	Short: "Correlate the yearly totals of the largest substances",
	RunE: func(cmd *cobra.Command, _ []string) error {
		top, _ := cmd.Flags().GetInt("top")
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		c := metrics.SubstanceCorrelation(d, top)
		return writeOutput(cmd.OutOrStdout(), flagFormat, c, func(w *tabwriter.Writer) {
			formatCorrelation(w, c)
		})
	},
}

func formatCorrelation(w *tabwriter.Writer, c metrics.Correlation) {
	header := []any{""}
	for _, s := range c.Substances {
		header = append(header, s)
	}
	row(w, header...)
	for i, s := range c.Substances {
		cells := []any{s}
		for _, v := range c.Matrix[i] {
			cells = append(cells, normalize.FormatDecimal(v, 2))
		}
		row(w, cells...)
	}
}

func init() {
	correlationCmd.Flags().Int("top", metrics.DefaultCorrelationTop, "substances to correlate")
	rootCmd.AddCommand(correlationCmd)
}
