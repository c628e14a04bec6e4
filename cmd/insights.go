package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/insight"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate findings about the dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		statements := insight.Global(d)
		if statements == nil {
			statements = []insight.Statement{}
		}
		return writeOutput(cmd.OutOrStdout(), flagFormat, statements, func(w *tabwriter.Writer) {
			formatStatements(w, statements)
		})
	},
}

func formatStatements(w *tabwriter.Writer, statements []insight.Statement) {
	for _, s := range statements {
		row(w, s.Title, s.Body)
	}
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
