package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/nasdf/osmdag/http"

	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the GraphQL api, playground, and metrics over http",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := cfg.Listen
		if cmd.Flags().Changed("listen") {
			addr = listenAddr
		}
		go logIndexErrors(ctx)
		return http.ListenAndServe(ctx, db, addr, logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on")

	rootCmd.AddCommand(serveCmd)
}

// logIndexErrors reports indexer failures until the context is cancelled.
func logIndexErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-db.Errors():
			logger.Error("indexer failed", "err", err)
		}
	}
}
