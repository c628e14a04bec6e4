package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/config"
)

var cfg *config.Config

// Input and output flags shared by the analysis commands.
var (
	flagFile       string
	flagSlot       string
	flagFormat     string
	flagYears      string
	flagStates     string
	flagSubstances string
)

var rootCmd = &cobra.Command{
	Use:   "cfem",
	Short: "CFEM mineral royalty normalization and metrics",
	Long:  "Cleans CFEM collection exports (states, months, Brazilian numbers, encodings) and computes quality, concentration, trend, seasonality and municipal diagnosis metrics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		mode := "cli"
		if cmd.Name() == serveCmd.Name() {
			mode = "serve"
		}
		return cfg.Validate(mode)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagFile, "file", "f", "", "primary CFEM export: csv, xlsx, zip or http(s) URL")
	pf.StringVar(&flagSlot, "slot", "", "read the primary dataset from a stored upload slot instead of --file")
	pf.StringVarP(&flagFormat, "format", "o", formatTable, "output format: table, json or yaml")
	pf.StringVar(&flagYears, "years", "", "comma-separated years to keep")
	pf.StringVar(&flagStates, "states", "", "comma-separated states (UF) to keep")
	pf.StringVar(&flagSubstances, "substances", "", "comma-separated substances to keep")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
