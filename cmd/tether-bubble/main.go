// Command tether-bubble is the on-disk fallback agent binary: a tiny
// main that only calls into pkg/bubble, used on hosts where the
// self-exe-streaming bootstrap (internal/transport.Bootstrap) can't run
// — e.g. no /bin/sh, or a read-only remote filesystem that still has room
// for one pre-deployed binary. internal/transport.FallbackBootstrap execs
// this binary directly by path instead of streaming the controller's own
// image over stdin.
package main

import (
	"fmt"
	"os"

	"github.com/tetherhq/tether/internal/facts"
	"github.com/tetherhq/tether/pkg/bubble"
	"github.com/tetherhq/tether/pkg/registry"
)

func main() {
	facts.Register(registry.Default)
	agent := bubble.New(registry.Default, bubble.Config{})
	if err := agent.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
