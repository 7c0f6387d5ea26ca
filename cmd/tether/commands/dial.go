package commands

import (
	"context"
	"fmt"

	"github.com/tetherhq/tether/pkg/tunnel"
)

// dial builds and connects a Tunnel to host using the transport selected
// by f, the common first step of every subcommand below.
func dial(ctx context.Context, host string, f *transportFlags) (*tunnel.Tunnel, error) {
	launcher, err := buildLauncher(f)
	if err != nil {
		return nil, err
	}
	t := tunnel.New(host, launcher, tunnel.Config{})
	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("commands: connect to %s: %w", host, err)
	}
	return t, nil
}
