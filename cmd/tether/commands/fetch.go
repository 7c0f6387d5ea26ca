package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var tf transportFlags
	c := &cobra.Command{
		Use:   "fetch HOST REMOTE_PATH LOCAL_PATH",
		Short: "Download REMOTE_PATH from HOST into LOCAL_PATH",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, remotePath, localPath := args[0], args[1], args[2]

			t, err := dial(cmd.Context(), host, &tf)
			if err != nil {
				return err
			}
			defer t.Close()

			dst, err := os.Create(localPath)
			if err != nil {
				return fmt.Errorf("fetch: create %s: %w", localPath, err)
			}
			defer dst.Close()

			if err := t.Fetch(cmd.Context(), remotePath, dst); err != nil {
				return fmt.Errorf("fetch %s from %s: %w", remotePath, host, err)
			}
			cmd.Printf("fetched %s:%s -> %s\n", host, remotePath, localPath)
			return nil
		},
	}
	addTransportFlags(c, &tf)
	return c
}
