//go:build !windows

package transport

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// GracePeriod is how long Close waits after sending SIGTERM before
// escalating to SIGKILL.
const GracePeriod = 5 * time.Second

// configureGracefulCancel wires cmd.Cancel/cmd.WaitDelay so that
// context.CancelFunc triggers SIGTERM first and SIGKILL only if the
// process outlives GracePeriod.
func configureGracefulCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = GracePeriod
}

// killProcessGroup sends SIGKILL to pid's entire process group, used as a
// last resort when a bubble's child has itself spawned children that
// would otherwise survive the bubble's own death (e.g. a long-running
// callable that forked a worker).
func killProcessGroup(pid int) error {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
