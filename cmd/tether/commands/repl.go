package commands

import (
	"bufio"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/pkg/codec"
)

// newReplCmd implements an interactive loop: one tunnel stays open for the
// session and every line of input becomes a CALL, with results (or
// errors) printed as they return. The callable name and its positional
// string arguments are read as whitespace/quote-separated tokens from a
// single line, rather than free-form chat text.
func newReplCmd() *cobra.Command {
	var tf transportFlags
	c := &cobra.Command{
		Use:   "repl HOST",
		Short: "Open a tunnel to HOST and issue successive calls interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]

			t, err := dial(cmd.Context(), host, &tf)
			if err != nil {
				return err
			}
			defer t.Close()

			cmd.Printf("connected to %s. Type a callable name and arguments, or /bye to quit.\n", host)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				cmd.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/bye" || line == "/exit" {
					break
				}

				fields, err := shellwords.Parse(line)
				if err != nil {
					cmd.PrintErrf("parse error: %v\n", err)
					continue
				}
				if len(fields) == 0 {
					continue
				}

				callable, rest := fields[0], fields[1:]
				argValues := make([]codec.Value, len(rest))
				for i, a := range rest {
					argValues[i] = codec.String(a)
				}

				result, err := t.Call(cmd.Context(), callable, codec.Tuple(argValues...))
				if err != nil {
					cmd.PrintErrf("error: %v\n", err)
					continue
				}
				cmd.Println(result.String())
			}
			return nil
		},
	}
	addTransportFlags(c, &tf)
	return c
}
