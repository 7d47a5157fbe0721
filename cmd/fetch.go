package cmd

import "github.com/spf13/cobra"

// newFetchCmd is an explicit alias for running the root command.
func newFetchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch security.txt for every domain in the list (the default action)",
		Args:  cobra.NoArgs,
		RunE:  c.runFetch,
	}
}
