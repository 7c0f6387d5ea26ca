package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPutCmd() *cobra.Command {
	var tf transportFlags
	c := &cobra.Command{
		Use:   "put LOCAL_PATH HOST REMOTE_PATH",
		Short: "Upload LOCAL_PATH to REMOTE_PATH on HOST",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			localPath, host, remotePath := args[0], args[1], args[2]

			src, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("put: open %s: %w", localPath, err)
			}
			defer src.Close()

			t, err := dial(cmd.Context(), host, &tf)
			if err != nil {
				return err
			}
			defer t.Close()

			if err := t.Put(cmd.Context(), src, remotePath); err != nil {
				return fmt.Errorf("put %s to %s: %w", localPath, host, err)
			}
			cmd.Printf("put %s -> %s:%s\n", localPath, host, remotePath)
			return nil
		},
	}
	addTransportFlags(c, &tf)
	return c
}
