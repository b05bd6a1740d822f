package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/acs-cli/internal/api"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serves query execution and cache management over HTTP: POST /v1/queries, GET /v1/cache, DELETE /v1/cache, GET /healthz.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cache, err := newCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		srv := api.NewServer(newCensusClient(), cache,
			api.WithChunkSize(cfg.Census.ChunkSize),
		)

		port := cfg.Server.Port
		if portFlag != 0 {
			port = portFlag
		}
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
