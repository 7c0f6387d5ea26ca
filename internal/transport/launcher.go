// Package transport builds and starts the child process a Tunnel talks to
// over stdio, wrapping exec.CommandContext with a cancellable sub-context
// and a uniform start/stop lifecycle across several pluggable remote-launch
// strategies (ssh, docker, sudo, local).
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// Process is a started child process a Tunnel owns the stdio of, with
// explicit Stdin/Stdout accessors a tunnel needs to frame messages over
// since the pipes themselves - not an HTTP proxy - are the payload.
type Process interface {
	// Stdin returns the pipe the tunnel writes frames to.
	Stdin() io.WriteCloser
	// Stdout returns the pipe the tunnel reads frames from.
	Stdout() io.ReadCloser
	// Stderr returns the child's stderr stream, drained by the caller into
	// a logging sink.
	Stderr() io.ReadCloser
	// Wait blocks until the process exits.
	Wait() error
	// Close terminates the process if still running: SIGTERM first, then
	// SIGKILL if it hasn't exited within the grace period.
	Close() error
}

// Launcher builds the argv of the process a Tunnel should spawn to reach a
// given host. Each concrete launcher (SSH, Docker, Sudo, Local) embodies
// one way to run "any process that speaks the bubble protocol over
// stdio"; all satisfy this single interface so pkg/tunnel never branches
// on transport kind.
type Launcher interface {
	// Start launches the child process for host and returns a handle to
	// its stdio. bootstrap is the POSIX shell command line that streams
	// and re-execs the bubble binary on the far end (see Bootstrap).
	Start(ctx context.Context, host string, bootstrap string) (Process, error)
}

// process is the concrete Process implementation shared by every Launcher:
// a *exec.Cmd plus the cancel func that regulates its lifetime.
type process struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	group  *processGroup
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *process) Stdin() io.WriteCloser  { return p.stdin }
func (p *process) Stdout() io.ReadCloser  { return p.stdout }
func (p *process) Stderr() io.ReadCloser  { return p.stderr }
func (p *process) Wait() error            { return p.cmd.Wait() }

func (p *process) Close() error {
	p.cancel()
	// Cancelling sends SIGTERM (configureGracefulCancel); Wait then returns
	// once the process exits, or kills it after cmd.WaitDelay.
	_ = p.cmd.Wait()
	// Best-effort: reap any grandchildren the bubble's callables spawned
	// into the same process group, which SIGTERM/SIGKILL of the bubble
	// itself would otherwise orphan.
	if p.group != nil {
		_ = p.group.Close()
	}
	return nil
}

// startCommand starts name/args as a child of ctx, wiring its stdio pipes
// the way every Launcher needs. A cancellable sub-context drives
// graceful-then-forced termination (Cmd.Cancel/Cmd.WaitDelay, set by the
// caller) rather than killing immediately, since a tunnel must let an
// in-flight CALL finish before its child dies.
func startCommand(ctx context.Context, name string, args []string, extraEnv ...string) (*process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), extraEnv...)
	}
	configureGracefulCancel(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: stderr pipe: %w", err)
	}

	group, err := startProcessGroup(cmd)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: start %s: %w", name, err)
	}

	return &process{cancel: cancel, cmd: cmd, group: group, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// streamSelfImage writes the controller's own executable to w, preceded by
// its length as a decimal ASCII line ("<n>\n"). This is the counterpart to
// the shell snippet Bootstrap emits, which reads that same line with the
// shell's `read` builtin and then consumes exactly n bytes with `head -c`
// before handing the rest of the same pipe to the exec'd bubble for framed
// protocol traffic - so the image transfer must be delimited by a known
// length rather than by closing or EOF-terminating the pipe.
func streamSelfImage(w io.Writer) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("transport: resolve self path: %w", err)
	}
	f, err := os.Open(self)
	if err != nil {
		return fmt.Errorf("transport: open self image %s: %w", self, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("transport: stat self image: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%d\n", info.Size()); err != nil {
		return fmt.Errorf("transport: write image length: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("transport: stream self image: %w", err)
	}
	return nil
}

// splitArgs parses a shell-quoted argument string using mattn/go-shellwords,
// which correctly handles escapes and nested quoting that argv strings
// built from user-supplied extra flags can legitimately contain.
func splitArgs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("transport: parse args %q: %w", s, err)
	}
	return args, nil
}
