package commands

import "github.com/spf13/cobra"

// Version is overridden at build time via -ldflags.
var Version = "dev"

func newVersionCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "version",
		Short: "Show the tether version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tether version %s\n", Version)
		},
	}
	return c
}
