package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Manage persisted uploads",
	Long:  "Stores source files in named slots (primary, processes) so later commands and the API can use them with --slot.",
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

// -- slot put --

var slotPutCmd = &cobra.Command{
	Use:   "put <primary|processes> <file>",
	Short: "Validate a file and store it in a slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, path := args[0], args[1]

		b, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}
		switch name {
		case store.SlotPrimary:
			_, err = newDatasetLoader().Load(ctx, b)
		case store.SlotProcesses:
			_, err = newProcessesLoader().Load(ctx, b)
		default:
			return eris.Errorf("unknown slot %q (want %s or %s)", name, store.SlotPrimary, store.SlotProcesses)
		}
		if err != nil {
			return eris.Wrapf(err, "validate %s", path)
		}

		slot := store.NewSlot(name, filepath.Base(path), b, cfg.Store.SlotTTL())
		err = withStore(ctx, func(st store.Store) error { return st.PutSlot(ctx, slot) })
		if err != nil {
			return err
		}
		zap.L().Info("slot stored", zap.String("slot", name), zap.String("id", slot.ID), zap.Int64("size", slot.Size))
		return writeOutput(cmd.OutOrStdout(), flagFormat, slot, func(w *tabwriter.Writer) {
			row(w, "SLOT", "FILE", "SIZE", "SHA256")
			row(w, slot.Name, slot.FileName, slot.Size, slot.SHA256[:12])
		})
	},
}

// -- slot list --

var slotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored slots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		var slots []store.Slot
		err := withStore(ctx, func(st store.Store) error {
			var err error
			slots, err = st.ListSlots(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if len(slots) == 0 && flagFormat == formatTable {
			fmt.Fprintln(cmd.ErrOrStderr(), "No slots stored.")
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), flagFormat, slots, func(w *tabwriter.Writer) {
			formatSlots(w, slots)
		})
	},
}

func formatSlots(w *tabwriter.Writer, slots []store.Slot) {
	row(w, "SLOT", "FILE", "SIZE", "CREATED", "EXPIRES")
	row(w, "----", "----", "----", "-------", "-------")
	for _, s := range slots {
		expires := "never"
		if !s.ExpiresAt.IsZero() {
			expires = s.ExpiresAt.Format("2006-01-02 15:04")
		}
		row(w, s.Name, s.FileName, normalize.FormatDecimal(float64(s.Size), 0), s.CreatedAt.Format("2006-01-02 15:04"), expires)
	}
}

// -- slot delete --

var slotDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete one slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withStore(ctx, func(st store.Store) error { return st.DeleteSlot(ctx, args[0]) })
	},
}

// -- slot clear --

var slotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored slots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		expiredOnly, _ := cmd.Flags().GetBool("expired")
		var n int
		err := withStore(ctx, func(st store.Store) error {
			var err error
			if expiredOnly {
				n, err = st.DeleteExpired(ctx)
			} else {
				n, err = st.Clear(ctx)
			}
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d slot(s).\n", n)
		return nil
	},
}

func init() {
	slotClearCmd.Flags().Bool("expired", false, "only delete expired slots")

	slotCmd.AddCommand(slotPutCmd, slotListCmd, slotDeleteCmd, slotClearCmd)
	rootCmd.AddCommand(slotCmd)
}
