package main

import (
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

// addColumnFlags registers the processes column overrides on fs.
func addColumnFlags(fs *pflag.FlagSet) {
	fs.String("processes", "", "processes export: csv, xlsx, zip or http(s) URL")
	fs.String("processes-slot", "", "read the processes export from a stored slot")
	fs.String("col-municipality", "", "processes column holding the municipality")
	fs.String("col-holder", "", "processes column holding the titleholder name")
	fs.String("col-substance", "", "processes column holding the substance")
	fs.String("col-process", "", "processes column holding the process number")
	fs.String("col-phase", "", "processes column holding the phase")
}

func columnFlags(fs *pflag.FlagSet) processes.Columns {
	get := func(name string) string {
		v, _ := fs.GetString(name)
		return v
	}
	return processes.Columns{
		Municipality: get("col-municipality"),
		Holder:       get("col-holder"),
		Substance:    get("col-substance"),
		Process:      get("col-process"),
		Phase:        get("col-phase"),
	}
}

// processesSource returns the file and slot named by the flags. Without
// either, the stored processes slot is used.
func processesSource(fs *pflag.FlagSet) (path, slot string) {
	path, _ = fs.GetString("processes")
	slot, _ = fs.GetString("processes-slot")
	if path == "" && slot == "" {
		slot = store.SlotProcesses
	}
	return path, slot
}

var holdersCmd = &cobra.Command{
	Use:   "holders",
	Short: "List the titleholders of a municipality from a processes export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fs := cmd.Flags()
		municipality, _ := fs.GetString("municipality")
		phase, _ := fs.GetString("phase")
		if strings.TrimSpace(municipality) == "" {
			return eris.New("--municipality is required")
		}
		if !fs.Changed("phase") {
			phase = cfg.Processes.Phase
		}

		path, slot := processesSource(fs)
		records, err := loadProcessRecords(cmd.Context(), path, slot, columnFlags(fs))
		if err != nil {
			return err
		}
		holders := processes.Holders(records, municipality, phase)
		return writeOutput(cmd.OutOrStdout(), flagFormat, holders, func(w *tabwriter.Writer) {
			formatHolders(w, holders)
		})
	},
}

func formatHolders(w *tabwriter.Writer, holders []processes.Holder) {
	row(w, "HOLDER", "SUBSTANCES", "PROCESSES")
	for _, h := range holders {
		row(w, h.Name, strings.Join(h.Substances, ", "), strings.Join(h.Processes, ", "))
	}
}

func init() {
	addColumnFlags(holdersCmd.Flags())
	holdersCmd.Flags().String("municipality", "", "municipality to list")
	holdersCmd.Flags().String("phase", processes.DefaultPhase, "only count processes in this phase (empty for all)")
	rootCmd.AddCommand(holdersCmd)
}
