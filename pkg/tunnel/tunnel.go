package tunnel

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tetherhq/tether/internal/transport"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/logging"
	"github.com/tetherhq/tether/pkg/metrics"
	"github.com/tetherhq/tether/pkg/registry"
	"github.com/tetherhq/tether/pkg/wire"
)

// DefaultDepthLimit is the default recursion bound applied to a tunnel's
// host path.
const DefaultDepthLimit = 2

// FetchChunkSize is the size of each FETCH_DATA/PUT_DATA chunk (10 KiB).
const FetchChunkSize = 10 * 1024

// Config configures a Tunnel's handshake and resource limits. It is a
// typed struct with constructor defaults rather than functional options,
// since every field here maps directly onto a handshake parameter.
type Config struct {
	// DepthLimit bounds how many hops a call chain may recurse through
	// before a DepthLimitError is raised. Zero means DefaultDepthLimit.
	DepthLimit int
	// HostPath is the chain of hosts already traversed to reach this
	// tunnel, used to build DepthLimitError.Path and forwarded in the
	// START handshake. The bubble does not retain the forwarded path, so
	// the bound is enforced only by a controller whose Config carries it.
	HostPath []string
	// AssetResolver serves IMP requests the remote bubble issues. A nil
	// resolver causes every IMP to report non-existence.
	AssetResolver registry.AssetResolver
	// Registry is stored with the Config but not read by Tunnel; the
	// bubble side takes its registry through bubble.New instead.
	Registry *registry.Registry
	// Logger receives structured diagnostics; a nil Logger uses
	// logrus.StandardLogger().
	Logger logging.Logger
	// Metrics, if set, receives Connect/Call/Fetch/Put observations. A
	// nil Tracker disables instrumentation entirely.
	Metrics *metrics.Tracker
}

func (c Config) depthLimit() int {
	if c.DepthLimit <= 0 {
		return DefaultDepthLimit
	}
	return c.DepthLimit
}

// Tunnel is a single connection to one remote bubble, reached through a
// Launcher-started child process. It owns that process's stdio and
// multiplexes CALL/RET/EXC/IMP/FETCH/PUT traffic across it.
type Tunnel struct {
	Host string

	cfg      Config
	launcher transport.Launcher
	log      logging.Logger

	mu    sync.Mutex
	state State
	proc  transport.Process

	nextReqID uint32
	// waiters carries the single terminal frame (RET or EXC) for a
	// request that produces exactly one reply: START, CALL, PUT.
	waiters map[uint32]chan wire.Frame
	// streams carries every frame — zero or more FETCH_DATA chunks
	// followed by a terminal RET/EXC — for a FETCH in progress.
	streams map[uint32]chan wire.Frame

	writeMu sync.Mutex

	readerDone chan struct{}
	stderrTail *logging.TailCapture
}

// New creates a Tunnel addressed at host, using launcher to spawn its
// child process. The tunnel starts in StateNew; call Connect to perform
// the handshake.
func New(host string, launcher transport.Launcher, cfg Config) *Tunnel {
	log := cfg.Logger
	if log == nil {
		log = logging.New(logrus.StandardLogger())
	}
	return &Tunnel{
		Host:     host,
		cfg:      cfg,
		launcher: launcher,
		log:      log,
		state:      StateNew,
		// allocReqID pre-increments, so start one below zero to make the
		// first issued req_id 0 - the slot reserved for the START
		// handshake and for an unsolicited IMP.
		nextReqID:  ^uint32(0),
		waiters:    make(map[uint32]chan wire.Frame),
		streams:    make(map[uint32]chan wire.Frame),
		stderrTail: logging.NewTailCapture(4096),
	}
}

func (t *Tunnel) setState(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.canTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.state, next)
	}
	t.log.WithFields(logrus.Fields{"host": t.Host, "from": t.state.String(), "to": next.String()}).Debug("tunnel state transition")
	t.state = next
	return nil
}

// State returns the tunnel's current lifecycle state.
func (t *Tunnel) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect spawns the child process, performs the START handshake, and
// launches the background reader goroutine that demultiplexes traffic by
// req_id. It is an error to call Connect more than once.
func (t *Tunnel) Connect(ctx context.Context) (err error) {
	if t.cfg.Metrics != nil {
		defer func() { t.cfg.Metrics.ObserveConnect(t.Host, err) }()
	}

	if err = t.setState(StateConnecting); err != nil {
		return err
	}

	if len(t.cfg.HostPath) >= t.cfg.depthLimit() {
		_ = t.setState(StateClosed)
		err = &DepthLimitError{Limit: t.cfg.depthLimit(), Path: append(append([]string{}, t.cfg.HostPath...), t.Host)}
		return err
	}

	bootstrap := transport.Bootstrap("")
	proc, startErr := t.launcher.Start(ctx, t.Host, bootstrap)
	if startErr != nil {
		_ = t.setState(StateClosed)
		err = fmt.Errorf("tunnel: start child for %s: %w", t.Host, startErr)
		return err
	}
	t.proc = proc

	t.readerDone = make(chan struct{})
	go t.readLoop()
	go t.drainStderr()

	startPayload := codec.MapOf(map[string]codec.Value{
		"host":       codec.String(t.Host),
		"path":       stringListToValue(append(append([]string{}, t.cfg.HostPath...), t.Host)),
		"depthlimit": codec.Int(fmt.Sprintf("%d", t.cfg.depthLimit())),
	}, []string{"host", "path", "depthlimit"})

	reqID := t.allocReqID()
	respCh := t.registerWaiter(reqID)
	if err := t.sendValue(reqID, wire.OpStart, startPayload); err != nil {
		_ = t.setState(StateClosed)
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	select {
	case frame := <-respCh:
		if frame.Op == wire.OpExc {
			_ = t.setState(StateClosed)
			return fmt.Errorf("%w: remote rejected START", ErrHandshakeFailed)
		}
	case <-ctx.Done():
		_ = t.setState(StateClosed)
		return ctx.Err()
	}

	return t.setState(StateConnected)
}

func stringListToValue(ss []string) codec.Value {
	items := make([]codec.Value, len(ss))
	for i, s := range ss {
		items[i] = codec.String(s)
	}
	return codec.List(items...)
}

func (t *Tunnel) allocReqID() uint32 {
	return atomic.AddUint32(&t.nextReqID, 1)
}

func (t *Tunnel) registerWaiter(reqID uint32) chan wire.Frame {
	ch := make(chan wire.Frame, 1)
	t.mu.Lock()
	t.waiters[reqID] = ch
	t.mu.Unlock()
	return ch
}

func (t *Tunnel) registerStream(reqID uint32) chan wire.Frame {
	ch := make(chan wire.Frame, 8)
	t.mu.Lock()
	t.streams[reqID] = ch
	t.mu.Unlock()
	return ch
}

func (t *Tunnel) unregisterStream(reqID uint32) {
	t.mu.Lock()
	delete(t.streams, reqID)
	t.mu.Unlock()
}

func (t *Tunnel) sendValue(reqID uint32, op wire.Op, val codec.Value) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.WriteValue(t.proc.Stdin(), reqID, op, val)
}

func (t *Tunnel) sendFrame(reqID uint32, op wire.Op, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.WriteFrame(t.proc.Stdin(), wire.Frame{ReqID: reqID, Op: op, Format: wire.FormatRaw, Payload: data})
}

// Call invokes the registered callable named name on the remote bubble
// with args, and blocks until the matching RET or EXC is received.
func (t *Tunnel) Call(ctx context.Context, name string, args codec.Value) (val codec.Value, err error) {
	if t.cfg.Metrics != nil {
		start := time.Now()
		defer func() { t.cfg.Metrics.ObserveCall(t.Host, name, time.Since(start), err) }()
	}

	if t.State() != StateConnected {
		return codec.Value{}, ErrNotConnected
	}

	reqID := t.allocReqID()
	respCh := t.registerWaiter(reqID)

	payload := codec.MapOf(map[string]codec.Value{
		"callable": codec.String(name),
		"args":     args,
	}, []string{"callable", "args"})

	if sendErr := t.sendValue(reqID, wire.OpCall, payload); sendErr != nil {
		return codec.Value{}, fmt.Errorf("tunnel: send CALL %s: %w", name, sendErr)
	}

	select {
	case frame := <-respCh:
		return decodeResult(name, frame)
	case <-ctx.Done():
		return codec.Value{}, ctx.Err()
	}
}

func decodeResult(label string, frame wire.Frame) (codec.Value, error) {
	val, err := wire.DecodeValue(frame)
	if err != nil {
		return codec.Value{}, fmt.Errorf("tunnel: decode result of %s: %w", label, err)
	}
	switch frame.Op {
	case wire.OpRet:
		return val, nil
	case wire.OpExc:
		return codec.Value{}, &RemoteException{
			TracebackText: val.GetString("traceback"),
			ClassName:     val.GetString("class"),
		}
	default:
		return codec.Value{}, fmt.Errorf("tunnel: unexpected response opcode %s for %s", frame.Op, label)
	}
}

// Close gracefully terminates the tunnel: closes stdin so the bubble sees
// EOF and exits on its own, waits for the reader goroutine to notice EOF,
// then hands off to transport.Process.Close for the SIGTERM/SIGKILL
// escalation.
func (t *Tunnel) Close() error {
	cur := t.State()
	if cur == StateClosed {
		return nil
	}
	if cur == StateConnected {
		if err := t.setState(StateClosing); err != nil {
			return err
		}
	}

	var closeErr error
	if t.proc != nil {
		if err := t.proc.Stdin().Close(); err != nil {
			closeErr = err
		}
		if t.readerDone != nil {
			<-t.readerDone
		}
		if err := t.proc.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	_ = t.setState(StateClosed)
	return closeErr
}

// readLoop is the tunnel's single reader goroutine: it owns the stdout
// pipe exclusively and dispatches each frame by opcode. One goroutine
// reads; any number of other goroutines call Call/Fetch/Put concurrently
// and block on their own req_id.
func (t *Tunnel) readLoop() {
	defer close(t.readerDone)
	for {
		frame, err := wire.ReadFrame(t.proc.Stdout())
		if err != nil {
			t.failAllOutstanding(err)
			return
		}
		t.dispatch(frame)
	}
}

func (t *Tunnel) failAllOutstanding(err error) {
	if tail := t.stderrTail.String(); tail != "" {
		err = fmt.Errorf("%w (stderr tail: %s)", err, tail)
	}
	errFrame := wire.Frame{Op: wire.OpExc, Format: wire.FormatPencode, Payload: mustEncodeErr(err)}

	t.mu.Lock()
	waiters := t.waiters
	streams := t.streams
	t.waiters = make(map[uint32]chan wire.Frame)
	t.streams = make(map[uint32]chan wire.Frame)
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- errFrame
	}
	for _, ch := range streams {
		ch <- errFrame
	}
}

func mustEncodeErr(err error) []byte {
	val := codec.MapOf(map[string]codec.Value{
		"traceback": codec.String(err.Error()),
		"class":     codec.String("TunnelIOError"),
	}, []string{"traceback", "class"})
	b, encErr := codec.Encode(val)
	if encErr != nil {
		return nil
	}
	return b
}

func (t *Tunnel) dispatch(frame wire.Frame) {
	switch frame.Op {
	case wire.OpImp:
		go t.handleImp(frame)
		return
	case wire.OpFetchData:
		t.mu.Lock()
		ch, ok := t.streams[frame.ReqID]
		t.mu.Unlock()
		if ok {
			ch <- frame
		}
		return
	}

	// RET/EXC: could terminate either a single-shot waiter (START, CALL,
	// PUT) or a FETCH stream — check both, a reqID only ever lives in one.
	t.mu.Lock()
	if ch, ok := t.waiters[frame.ReqID]; ok {
		delete(t.waiters, frame.ReqID)
		t.mu.Unlock()
		ch <- frame
		return
	}
	if ch, ok := t.streams[frame.ReqID]; ok {
		t.mu.Unlock()
		ch <- frame
		return
	}
	t.mu.Unlock()
}

// handleImp answers an IMP request from the remote bubble by resolving the
// requested asset key against cfg.AssetResolver and replying with either
// the asset's bytes or a not-found/error indication.
func (t *Tunnel) handleImp(frame wire.Frame) {
	req, err := wire.DecodeValue(frame)
	if err != nil {
		t.log.WithError(err).Warn("tunnel: malformed IMP request")
		return
	}
	key := req.GetString("key")

	ctx, cancel := context.WithTimeout(context.Background(), registry.ImportTimeout)
	defer cancel()

	var reply codec.Value
	var existed bool
	switch {
	case t.cfg.AssetResolver == nil:
		reply = codec.MapOf(map[string]codec.Value{
			"exists": codec.Bool(false),
		}, []string{"exists"})
	default:
		content, rerr := t.cfg.AssetResolver.Resolve(ctx, key)
		if rerr != nil {
			reply = codec.MapOf(map[string]codec.Value{
				"exists": codec.Bool(false),
				"error":  codec.String(rerr.Error()),
			}, []string{"exists", "error"})
		} else {
			existed = true
			reply = codec.MapOf(map[string]codec.Value{
				"exists":  codec.Bool(true),
				"content": codec.Bytes(content),
			}, []string{"exists", "content"})
		}
	}
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.ObserveImport(t.Host, existed)
	}

	if err := t.sendValue(frame.ReqID, wire.OpImp, reply); err != nil {
		t.log.WithError(err).Warn("tunnel: failed to answer IMP")
	}
}

func (t *Tunnel) drainStderr() {
	if t.proc == nil {
		return
	}
	prefixed := logging.NewHostPrefixWriter(t.log, t.Host)
	_, _ = io.Copy(io.MultiWriter(prefixed, t.stderrTail), t.proc.Stderr())
}

// StderrTail returns the last bytes of the remote child's stderr output,
// for inclusion in diagnostics when a tunnel dies unexpectedly.
func (t *Tunnel) StderrTail() string {
	return t.stderrTail.String()
}

// Fetch streams the remote file at remotePath into dst, verifying its
// SHA-1 checksum against the digest the bubble reports in its terminal RET
// message. FETCH_END is never sent; RET is the sole terminator.
func (t *Tunnel) Fetch(ctx context.Context, remotePath string, dst io.Writer) error {
	if t.State() != StateConnected {
		return ErrNotConnected
	}

	reqID := t.allocReqID()
	ch := t.registerStream(reqID)
	defer t.unregisterStream(reqID)

	beginPayload := codec.MapOf(map[string]codec.Value{
		"path": codec.String(remotePath),
	}, []string{"path"})
	if err := t.sendValue(reqID, wire.OpFetchBegin, beginPayload); err != nil {
		return fmt.Errorf("tunnel: send FETCH_BEGIN: %w", err)
	}

	hasher := sha1.New()
	for {
		select {
		case frame := <-ch:
			switch frame.Op {
			case wire.OpFetchData:
				if _, err := dst.Write(frame.Payload); err != nil {
					return fmt.Errorf("tunnel: write fetched data: %w", err)
				}
				hasher.Write(frame.Payload)
				if t.cfg.Metrics != nil {
					t.cfg.Metrics.ObserveBytesReceived(t.Host, len(frame.Payload))
				}
			case wire.OpRet:
				val, err := wire.DecodeValue(frame)
				if err != nil {
					return fmt.Errorf("tunnel: decode FETCH terminator: %w", err)
				}
				got := hex.EncodeToString(hasher.Sum(nil))
				want := val.GetString("sha1")
				if want != "" && want != got {
					return fmt.Errorf("tunnel: fetch checksum mismatch for %s: got %s want %s", remotePath, got, want)
				}
				return nil
			case wire.OpExc:
				_, err := decodeResult("FETCH "+remotePath, frame)
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Put streams src to the remote path remotePath in FetchChunkSize chunks,
// sending the accumulated SHA-1 checksum in PUT_END so the bubble can
// verify it wrote the temp file correctly before renaming it into place.
func (t *Tunnel) Put(ctx context.Context, src io.Reader, remotePath string) error {
	if t.State() != StateConnected {
		return ErrNotConnected
	}

	reqID := t.allocReqID()
	respCh := t.registerWaiter(reqID)

	beginPayload := codec.MapOf(map[string]codec.Value{
		"path": codec.String(remotePath),
	}, []string{"path"})
	if err := t.sendValue(reqID, wire.OpPutBegin, beginPayload); err != nil {
		return fmt.Errorf("tunnel: send PUT_BEGIN: %w", err)
	}

	hasher := sha1.New()
	buf := make([]byte, FetchChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if werr := t.sendFrame(reqID, wire.OpPutData, append([]byte(nil), buf[:n]...)); werr != nil {
				return fmt.Errorf("tunnel: send PUT_DATA: %w", werr)
			}
			if t.cfg.Metrics != nil {
				t.cfg.Metrics.ObserveBytesSent(t.Host, n)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tunnel: read local source: %w", err)
		}
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	endPayload := codec.MapOf(map[string]codec.Value{
		"sha1": codec.String(sum),
	}, []string{"sha1"})
	if err := t.sendValue(reqID, wire.OpPutEnd, endPayload); err != nil {
		return fmt.Errorf("tunnel: send PUT_END: %w", err)
	}

	select {
	case frame := <-respCh:
		_, err := decodeResult("PUT "+remotePath, frame)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
