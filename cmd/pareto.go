package main

import (
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

var paretoCmd = &cobra.Command{
	Use:   "pareto",
	Short: "Rank groups by their share of a value (80/20 analysis)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		groupName, _ := cmd.Flags().GetString("group")
		valueName, _ := cmd.Flags().GetString("value")
		top, _ := cmd.Flags().GetInt("top")

		group, err := dataset.ParseColumn(groupName)
		if err != nil {
			return err
		}
		value, err := dataset.ParseColumn(valueName)
		if err != nil {
			return err
		}
		if !value.Numeric() {
			return eris.Errorf("--value must be numeric, got %q", valueName)
		}

		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		p := metrics.ParetoAnalysis(d, group, value, top)
		return writeOutput(cmd.OutOrStdout(), flagFormat, p, func(w *tabwriter.Writer) {
			formatPareto(w, p)
		})
	},
}

func formatPareto(w *tabwriter.Writer, p metrics.Pareto) {
	row(w, "#", "GROUP", "VALUE", "SHARE", "CUMULATIVE", "")
	for i, r := range p.Rows {
		mark := ""
		if i == p.Cutoff {
			mark = "<- 80%"
		}
		row(w, i+1, r.Group, normalize.FormatDecimal(r.Value, 2),
			normalize.FormatPercent(r.Percent), normalize.FormatPercent(r.Cumulative), mark)
	}
	row(w, "", "TOTAL", normalize.FormatDecimal(p.Total, 2), "", "", "")
}

func init() {
	paretoCmd.Flags().String("group", string(dataset.ColMunicipality), "column to group by")
	paretoCmd.Flags().String("value", string(dataset.ColAmount), "numeric column to sum")
	paretoCmd.Flags().Int("top", 20, "groups to keep (0 = all)")
	rootCmd.AddCommand(paretoCmd)
}
