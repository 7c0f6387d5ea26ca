package transport

import (
	"context"
	"fmt"
)

// SSHLauncher connects to a remote host via the system ssh client: a
// plain `ssh -l user host <bootstrap>` invocation, generalised with an
// optional list of extra ssh flags (identity file, port, ProxyJump, ...).
type SSHLauncher struct {
	// Binary is the ssh executable to run; defaults to "ssh".
	Binary string
	// User overrides the remote login user. Empty means ssh's own default
	// (the local username, or one set in ~/.ssh/config).
	User string
	// ExtraArgs are passed to ssh before the host argument, e.g.
	// []string{"-p", "2222", "-i", "/path/to/key"}.
	ExtraArgs []string
	// TmpDir is forwarded to Bootstrap for the remote temp-file location.
	TmpDir string
}

func (l *SSHLauncher) Start(ctx context.Context, host string, bootstrap string) (Process, error) {
	bin := l.Binary
	if bin == "" {
		bin = "ssh"
	}
	args := make([]string, 0, len(l.ExtraArgs)+4)
	args = append(args, l.ExtraArgs...)
	if l.User != "" {
		args = append(args, "-l", l.User)
	}
	args = append(args, host, bootstrap)
	proc, err := startCommand(ctx, bin, args)
	if err != nil {
		return nil, err
	}
	if err := streamSelfImage(proc.Stdin()); err != nil {
		_ = proc.Close()
		return nil, fmt.Errorf("transport: stream bubble image to %s: %w", host, err)
	}
	return proc, nil
}

// DockerLauncher runs the bubble inside a container via `docker exec` (or
// `docker run` for an ephemeral container).
type DockerLauncher struct {
	// Binary is the docker executable; defaults to "docker".
	Binary string
	// Container is the name or ID of an already-running container to exec
	// into. If empty, Image must be set and a new container is run.
	Container string
	// Image is used with `docker run --rm -i` when Container is empty.
	Image string
	// TmpDir is forwarded to Bootstrap.
	TmpDir string
}

func (l *DockerLauncher) Start(ctx context.Context, host string, bootstrap string) (Process, error) {
	bin := l.Binary
	if bin == "" {
		bin = "docker"
	}
	var args []string
	switch {
	case l.Container != "":
		args = []string{"exec", "-i", l.Container, "sh", "-c", bootstrap}
	case l.Image != "":
		args = []string{"run", "--rm", "-i", l.Image, "sh", "-c", bootstrap}
	default:
		return nil, fmt.Errorf("transport: docker launcher for host %q needs Container or Image", host)
	}
	proc, err := startCommand(ctx, bin, args)
	if err != nil {
		return nil, err
	}
	if err := streamSelfImage(proc.Stdin()); err != nil {
		_ = proc.Close()
		return nil, fmt.Errorf("transport: stream bubble image to %s: %w", host, err)
	}
	return proc, nil
}

// SudoLauncher elevates privileges locally via sudo before exec'ing the
// bootstrap shell. It is a distinct Launcher rather than a string-prefixed
// host spec, matching Go's preference for explicit configuration over
// stringly-typed dispatch.
type SudoLauncher struct {
	// Binary is the sudo executable; defaults to "sudo".
	Binary string
	// User is passed to sudo -u; empty means root.
	User string
	// TmpDir is forwarded to Bootstrap.
	TmpDir string
}

func (l *SudoLauncher) Start(ctx context.Context, host string, bootstrap string) (Process, error) {
	bin := l.Binary
	if bin == "" {
		bin = "sudo"
	}
	args := []string{"-n"}
	if l.User != "" {
		args = append(args, "-u", l.User)
	}
	args = append(args, "sh", "-c", bootstrap)
	proc, err := startCommand(ctx, bin, args)
	if err != nil {
		return nil, err
	}
	if err := streamSelfImage(proc.Stdin()); err != nil {
		_ = proc.Close()
		return nil, fmt.Errorf("transport: stream bubble image to %s: %w", host, err)
	}
	return proc, nil
}

// LocalLauncher runs the bubble as a direct child of the controller
// process with no remote transport at all, used for testing and for
// in-process fan-out to "localhost" group members. It skips the shell
// bootstrap entirely and re-execs the controller's own binary directly,
// since no intermediate shell is needed when there's no remote hop.
type LocalLauncher struct {
	// SelfPath is the path to the controller's own executable, as
	// returned by os.Executable(). The CLI's --transport local resolves it
	// that way; tests may set it to a stub binary.
	SelfPath string
}

func (l *LocalLauncher) Start(ctx context.Context, host string, _ string) (Process, error) {
	if l.SelfPath == "" {
		return nil, fmt.Errorf("transport: local launcher for host %q has no SelfPath", host)
	}
	return startCommand(ctx, l.SelfPath, nil, "TETHER_BUBBLE=1")
}
