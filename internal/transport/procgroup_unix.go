//go:build !windows

package transport

import (
	"os/exec"
	"syscall"
)

// processGroup tracks the OS handle needed to tear down cmd's entire
// process tree, not just cmd itself. On POSIX this is the process group
// id created by Setpgid below; killProcessGroup (termination.go) signals
// it directly.
type processGroup struct {
	pid int
}

// startProcessGroup starts cmd in its own process group so that
// killProcessGroup can later reach any children it spawns, then returns a
// handle for tearing that group down.
func startProcessGroup(cmd *exec.Cmd) (*processGroup, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processGroup{pid: cmd.Process.Pid}, nil
}

// Close sends SIGKILL to every process in the group.
func (g *processGroup) Close() error {
	return killProcessGroup(g.pid)
}
