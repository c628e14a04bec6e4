package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := server.New(st, newDatasetLoader(), newProcessesLoader(), server.Options{
			Quality:          cfg.Quality,
			Distribution:     cfg.Distribution,
			ProcessColumns:   cfg.Processes.Columns,
			Phase:            cfg.Processes.Phase,
			SlotTTL:          cfg.Store.SlotTTL(),
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			UploadsPerMinute: cfg.Server.UploadsPerMinute,
			MaxUploadBytes:   int64(cfg.Server.MaxUploadMB) << 20,
			SweepInterval:    cfg.Cache.TTL(),
		})
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "listen port (default from config server.port)")
	rootCmd.AddCommand(serveCmd)
}
