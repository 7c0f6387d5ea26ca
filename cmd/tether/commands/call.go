package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/pkg/codec"
)

func newCallCmd() *cobra.Command {
	var tf transportFlags
	c := &cobra.Command{
		Use:   "call HOST CALLABLE [ARG...]",
		Short: "Connect to HOST and invoke a registered callable",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, callable, rest := args[0], args[1], args[2:]

			t, err := dial(cmd.Context(), host, &tf)
			if err != nil {
				return err
			}
			defer t.Close()

			argValues := make([]codec.Value, len(rest))
			for i, a := range rest {
				argValues[i] = codec.String(a)
			}

			result, err := t.Call(cmd.Context(), callable, codec.Tuple(argValues...))
			if err != nil {
				return fmt.Errorf("call %s on %s: %w", callable, host, err)
			}
			cmd.Println(result.String())
			return nil
		},
	}
	addTransportFlags(c, &tf)
	return c
}
