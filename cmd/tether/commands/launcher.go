package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/internal/transport"
)

// transportFlags holds the launcher-selection flags shared by every
// subcommand that opens a tunnel: a small flag-holding struct bound once
// per command and consulted in each RunE.
type transportFlags struct {
	kind      string
	user      string
	container string
	image     string
	sshBinary string
}

func addTransportFlags(c *cobra.Command, f *transportFlags) {
	c.Flags().StringVar(&f.kind, "transport", "ssh", "transport to reach the host: ssh|docker|sudo|local")
	c.Flags().StringVar(&f.user, "user", "", "remote login (ssh) or privilege-escalation (sudo) user")
	c.Flags().StringVar(&f.container, "container", "", "docker transport: name of a running container to exec into")
	c.Flags().StringVar(&f.image, "image", "", "docker transport: image to run an ephemeral container from")
	c.Flags().StringVar(&f.sshBinary, "ssh-binary", "", "ssh transport: override the ssh executable")
}

// buildLauncher turns transportFlags into a concrete transport.Launcher,
// the CLI-facing counterpart of constructing a Launcher directly in Go
// code (pkg/group/group_test.go's newTestGroup does the same thing for tests).
func buildLauncher(f *transportFlags) (transport.Launcher, error) {
	switch f.kind {
	case "ssh":
		return &transport.SSHLauncher{Binary: f.sshBinary, User: f.user}, nil
	case "docker":
		return &transport.DockerLauncher{Container: f.container, Image: f.image}, nil
	case "sudo":
		return &transport.SudoLauncher{User: f.user}, nil
	case "local":
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("commands: resolve own executable for local transport: %w", err)
		}
		return &transport.LocalLauncher{SelfPath: self}, nil
	default:
		return nil, fmt.Errorf("commands: unknown --transport %q (want ssh, docker, sudo, or local)", f.kind)
	}
}
