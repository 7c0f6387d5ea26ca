//go:build windows

package transport

import (
	"os/exec"
	"time"
)

// GracePeriod mirrors the POSIX build's constant of the same name so
// callers don't need build tags of their own, even though Windows has no
// graceful-signal equivalent to wait out (see configureGracefulCancel).
const GracePeriod = 5 * time.Second

// configureGracefulCancel has no SIGTERM equivalent to send on Windows, so
// cancellation goes straight to Kill; the Job object from
// startProcessGroup is what actually guarantees the whole tree dies.
func configureGracefulCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
