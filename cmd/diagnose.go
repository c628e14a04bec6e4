package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/report"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Build the diagnosis workbook and charts of one municipality",
	Long: `Profiles a municipality within its state (rank, share, top substances,
legal revenue split and recoverable estimate), fits the monthly trend,
generates findings and, when a processes export is given, lists its
titleholders. Writes an xlsx workbook and PNG charts to --out.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		fs := cmd.Flags()
		municipality, _ := fs.GetString("municipality")
		state, _ := fs.GetString("state")
		out, _ := fs.GetString("out")
		if municipality == "" || state == "" {
			return eris.New("--municipality and --state are required")
		}
		if out == "" {
			out = cfg.Report.OutputDir
		}

		procPath, _ := fs.GetString("processes")
		procSlot, _ := fs.GetString("processes-slot")
		withHolders := procPath != "" || procSlot != ""

		var (
			d       *dataset.Dataset
			records []processes.Record
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			d, err = loadDataset(gctx)
			return err
		})
		if withHolders {
			g.Go(func() error {
				var err error
				records, err = loadProcessRecords(gctx, procPath, procSlot, columnFlags(fs))
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if withHolders && records == nil {
			records = []processes.Record{}
		}

		diag, err := report.Build(ctx, d, report.Request{
			Municipality: municipality,
			State:        state,
			Distribution: cfg.Distribution,
			Processes:    records,
			Phase:        cfg.Processes.Phase,
		})
		if err != nil {
			return err
		}
		paths, err := diag.Save(out)
		if err != nil {
			return err
		}
		zap.L().Info("diagnosis saved", zap.String("id", diag.ID), zap.Strings("files", paths))

		return writeOutput(cmd.OutOrStdout(), flagFormat, diag, func(w *tabwriter.Writer) {
			p := diag.Profile
			row(w, "Municipality", p.Municipality+" - "+p.State)
			row(w, "Total", normalize.FormatBRL(p.Total))
			row(w, "Rank", fmt.Sprintf("%d of %d", p.Rank, p.StateMunicipalities))
			row(w, "State share", normalize.FormatPercent(p.StateShare))
			row(w, "Recoverable (municipal)", normalize.FormatBRL(p.Split.RecoverableMunicipal))
			for _, s := range diag.Insights {
				row(w, s.Title, s.Body)
			}
			if withHolders {
				row(w, "Holders", len(diag.Holders))
			}
			row(w)
			for _, path := range paths {
				row(w, "Wrote", path)
			}
		})
	},
}

func init() {
	fs := diagnoseCmd.Flags()
	addColumnFlags(fs)
	fs.String("municipality", "", "municipality to diagnose")
	fs.String("state", "", "state (UF) of the municipality")
	fs.String("out", "", "output directory (default from config report.output_dir)")
	rootCmd.AddCommand(diagnoseCmd)
}
