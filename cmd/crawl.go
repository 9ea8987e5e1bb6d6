package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/praxis-search/ragline/internal/crawler"
)

func newCrawlCmd() *cobra.Command {
	var (
		maxDepth      int
		maxPages      int
		include       []string
		exclude       []string
		noRobots      bool
		followSitemap bool
		delayMs       int
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and store its content as embedded chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			opts := crawler.Options{
				MaxDepth:        maxDepth,
				MaxPages:        maxPages,
				IncludePatterns: include,
				ExcludePatterns: exclude,
				RespectRobots:   !noRobots,
				FollowSitemap:   followSitemap,
			}
			if delayMs > 0 {
				opts.CrawlDelay = time.Duration(delayMs) * time.Millisecond
			} else {
				opts.CrawlDelay = a.cfg.CrawlDelay()
			}

			report, err := a.ingestor.Run(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum link depth from the start URL")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch")
	cmd.Flags().StringSliceVar(&include, "include", nil, "regex patterns a URL must match to be crawled")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "regex patterns that exclude a URL from the crawl")
	cmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt directives")
	cmd.Flags().BoolVar(&followSitemap, "sitemap", false, "seed the frontier from sitemap.xml")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "delay between fetches in milliseconds")

	return cmd
}
