package tunnel

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetherhq/tether/internal/transport"
	"github.com/tetherhq/tether/pkg/bubble"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/registry"
)

// pipeLauncher connects a Tunnel directly to an in-process bubble.Agent via
// in-memory pipes, so these tests exercise the real wire framing and
// pencode traffic without spawning an OS process or depending on an
// external ssh/docker binary.
type pipeLauncher struct {
	agentReg *registry.Registry
}

type pipeProcess struct {
	toAgent    *io.PipeWriter
	fromAgent  *io.PipeReader
	agentDone  chan struct{}
	stderrPipe *io.PipeReader
}

func (p *pipeProcess) Stdin() io.WriteCloser  { return p.toAgent }
func (p *pipeProcess) Stdout() io.ReadCloser  { return p.fromAgent }
func (p *pipeProcess) Stderr() io.ReadCloser  { return p.stderrPipe }
func (p *pipeProcess) Wait() error            { <-p.agentDone; return nil }
func (p *pipeProcess) Close() error           { return nil }

func (l *pipeLauncher) Start(ctx context.Context, host string, bootstrap string) (transport.Process, error) {
	controllerToAgentR, controllerToAgentW := io.Pipe()
	agentToControllerR, agentToControllerW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	agent := bubble.New(l.agentReg, bubble.Config{})
	done := make(chan struct{})
	go func() {
		_ = agent.Run(controllerToAgentR, agentToControllerW)
		agentToControllerW.Close()
		stderrW.Close()
		close(done)
	}()

	return &pipeProcess{
		toAgent:    controllerToAgentW,
		fromAgent:  agentToControllerR,
		agentDone:  done,
		stderrPipe: stderrR,
	}, nil
}

func newConnectedTunnel(t *testing.T, reg *registry.Registry) *Tunnel {
	t.Helper()
	tun := New("localhost", &pipeLauncher{agentReg: reg}, Config{})
	require.NoError(t, tun.Connect(context.Background()))
	return tun
}

func TestConnectAndCallRoundTrip(t *testing.T) {
	reg := registry.New()
	reg.Register("add", func(_ context.Context, args codec.Value) (codec.Value, error) {
		items := args.Items()
		a := items[0].AsInt()
		b := items[1].AsInt()
		_ = a
		_ = b
		return codec.String("ok"), nil
	})

	tun := newConnectedTunnel(t, reg)
	defer tun.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := tun.Call(ctx, "add", codec.Tuple(codec.Int("1"), codec.Int("2")))
	require.NoError(t, err)
	assert.Equal(t, "ok", out.AsString())
}

func TestCallUnknownCallableReturnsRemoteException(t *testing.T) {
	reg := registry.New()
	tun := newConnectedTunnel(t, reg)
	defer tun.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tun.Call(ctx, "does-not-exist", codec.Tuple())
	require.Error(t, err)
	var remote *RemoteException
	assert.ErrorAs(t, err, &remote)
}

func TestCallBeforeConnectFails(t *testing.T) {
	tun := New("localhost", &pipeLauncher{agentReg: registry.New()}, Config{})
	_, err := tun.Call(context.Background(), "x", codec.Tuple())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDepthLimitExceeded(t *testing.T) {
	tun := New("h2", &pipeLauncher{agentReg: registry.New()}, Config{
		DepthLimit: 2,
		HostPath:   []string{"h0", "h1"},
	})
	err := tun.Connect(context.Background())
	require.Error(t, err)
	var depthErr *DepthLimitError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, "Depth limit of 2 exceeded at h0 -> h1 -> h2", depthErr.Error())
}

func TestCloseIsIdempotent(t *testing.T) {
	tun := newConnectedTunnel(t, registry.New())
	require.NoError(t, tun.Close())
	require.NoError(t, tun.Close())
	assert.Equal(t, StateClosed, tun.State())
}

func TestStateMachineTransitions(t *testing.T) {
	assert.True(t, StateNew.canTransitionTo(StateConnecting))
	assert.False(t, StateNew.canTransitionTo(StateConnected))
	assert.True(t, StateConnected.canTransitionTo(StateClosing))
	assert.False(t, StateClosed.canTransitionTo(StateNew))
}

func TestPutAndFetchRoundTrip(t *testing.T) {
	reg := registry.New()
	tun := newConnectedTunnel(t, reg)
	defer tun.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, tun.Put(ctx, newBytesReader(content), "/tmp/tether-test-put"))

	var out bytesWriter
	require.NoError(t, tun.Fetch(ctx, "/tmp/tether-test-put", &out))
	assert.Equal(t, content, out.buf)
}

type bytesWriter struct{ buf []byte }

func (b *bytesWriter) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func newBytesReader(b []byte) io.Reader {
	return &onceReader{data: b}
}

type onceReader struct {
	data []byte
	off  int
}

func (r *onceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}
