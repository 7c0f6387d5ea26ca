// Command tether is a multicall binary: by default it is the controller
// CLI; when TETHER_BUBBLE=1 is set in its environment, it re-executes
// itself as the bubble (agent) instead, speaking the wire protocol over
// stdin/stdout. internal/transport.Bootstrap builds the shell one-liner
// that streams this same binary to a remote host and execs it with that
// variable set, so the remote side runs the exact build that dialed it.
package main

import (
	"fmt"
	"os"

	"github.com/tetherhq/tether/cmd/tether/commands"
	"github.com/tetherhq/tether/internal/facts"
	"github.com/tetherhq/tether/pkg/bubble"
	"github.com/tetherhq/tether/pkg/registry"
)

func main() {
	if os.Getenv("TETHER_BUBBLE") == "1" {
		os.Exit(runBubble())
	}

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBubble() int {
	facts.Register(registry.Default)
	agent := bubble.New(registry.Default, bubble.Config{})
	if err := agent.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
