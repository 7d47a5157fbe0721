package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDomainsCmd downloads and caches the domain list without fetching anything.
func newDomainsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Download and cache the domain list, then report its size",
		Long: `domains ensures the CSV named by --domains exists, downloading the remote
top-sites archive and caching its first entry when it does not, and prints the
number of domains it holds. No output directory is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			n, err := c.runner(cmd, cfg, logger).Prefetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("domains: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d domains ready in %s\n", n, cfg.Crawler.DomainsPath)
			return err
		},
	}
}
