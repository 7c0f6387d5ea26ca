package commands

import "github.com/spf13/cobra"

// NewRootCmd builds the controller-side CLI: a bare root command whose
// entire job is wiring subcommands together.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tether",
		Short: "Tunnel a remote agent over ssh/docker/sudo and run callables on it",
	}
	rootCmd.AddCommand(
		newVersionCmd(),
		newCallCmd(),
		newFetchCmd(),
		newPutCmd(),
		newReplCmd(),
	)
	return rootCmd
}
