package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/KaramelBytes/tabstep-cli/internal/metrics"
	"github.com/KaramelBytes/tabstep-cli/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace session over HTTP",
	Long: `Expose the session operations as a JSON API under /v1, with /health and
Prometheus metrics at /metrics. Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServeAddr
		}
		if addr == "" {
			addr = "127.0.0.1:8050"
		}
		m := metrics.New(nil)
		sess := openSessionWith(m)
		srv := server.New(sess, server.Options{
			ExportName: filepath.Base(exportName(sess.Workspace())),
			Logger:     logger,
			Metrics:    m,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving %s on http://%s\n", sess.Workspace(), addr)
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: serve_addr from config, else 127.0.0.1:8050)")
}
