//go:build windows

package transport

import (
	"os/exec"

	winjob "github.com/kolesnikovae/go-winjob"
)

// processGroup wraps the Windows Job object that stands in for a POSIX
// process group: every process cmd spawns is assigned to the job, and
// WithKillOnJobClose makes Close tear down the whole tree in one call,
// the Windows analogue of killProcessGroup's SIGKILL-to-the-group.
type processGroup struct {
	job *winjob.JobObject
}

// startProcessGroup starts cmd inside a fresh Job object so that a
// bubble's grandchildren (spawned by a callable, not by the tunnel
// itself) cannot outlive the bubble's own termination.
func startProcessGroup(cmd *exec.Cmd) (*processGroup, error) {
	job, err := winjob.Start(cmd, winjob.WithKillOnJobClose())
	if err != nil {
		return nil, err
	}
	return &processGroup{job: job}, nil
}

// Close terminates every process still running inside the job.
func (g *processGroup) Close() error {
	return g.job.Close()
}
