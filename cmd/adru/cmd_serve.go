package main

import (
	"context"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics, sources and reports over HTTP until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, appOptions{reports: true}, func(ctx context.Context, a *app) error {
			addr := serveAddr
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr == "" {
				addr = ":9091"
			}

			errc := a.startStatusServer(addr)
			select {
			case <-ctx.Done():
				a.logger.Info("shutting down status server")
				return nil
			case err := <-errc:
				return err
			}
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides METRICS_ADDR")
}
