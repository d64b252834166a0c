package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scholarctl",
		Short:         "Operate the ScholarHub catalog from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newQueryCmd(), newTokensCmd())
	return root
}
