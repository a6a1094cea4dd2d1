package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/imagefinder/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		Long: `Serves POST /main for synchronous crawls and the /v1/crawls job API,
together with /healthz, /readyz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := app.Build(cfg, c.logger).Run(cmd.Context()); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
