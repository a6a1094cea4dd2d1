// Package cmd defines the imagefinder command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/config"
	"github.com/JakeFAU/imagefinder/internal/logging"
)

// cli carries the state resolved by the root command before any subcommand
// runs.
type cli struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

// newRootCmd creates the root command and registers the subcommands.
func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "imagefinder",
		Short: "Finds the images published on a website.",
		Long: `imagefinder crawls a site from a start URL, follows same-domain links
up to a fixed depth and reports every same-domain image it finds, skipping
images that look like logos.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newServeCmd(c), newCrawlCmd(c))
	return cmd
}

func (c *cli) init() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) close() {
	if c.logger == nil {
		return
	}
	if err := c.logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
