package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/app"
)

type crawlFlags struct {
	maxDepth    int
	fanOut      int
	rateLimitMs int
}

// newCrawlCmd creates the 'crawl' subcommand, which runs a single crawl and
// prints the sorted image list as JSON on stdout.
func newCrawlCmd(c *cli) *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawls one site and prints its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.cfg.CrawlOptions()
			if cmd.Flags().Changed("max-depth") {
				opts.MaxDepth = flags.maxDepth
			}
			if cmd.Flags().Changed("fan-out") {
				opts.FanOut = flags.fanOut
			}
			if cmd.Flags().Changed("rate-limit-ms") {
				opts.RateLimit = time.Duration(flags.rateLimitMs) * time.Millisecond
				if flags.rateLimitMs == 0 {
					opts.RateLimit = -1
				}
			}

			result, err := app.NewEngine(c.cfg, c.logger).Crawl(cmd.Context(), args[0], opts)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", args[0], err)
			}
			if result.Interrupted {
				c.logger.Warn("crawl interrupted; printing partial results",
					zap.String("url", args[0]),
					zap.Int("images", len(result.Images)),
				)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Images); err != nil {
				return fmt.Errorf("write images: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "link hops to follow; the start page is depth 1")
	cmd.Flags().IntVar(&flags.fanOut, "fan-out", 0, "links followed per page")
	cmd.Flags().IntVar(&flags.rateLimitMs, "rate-limit-ms", 0, "minimum milliseconds between fetches; 0 disables")
	return cmd
}
