// Package bubble implements the agent side of a tunnel: the process that
// runs inside the spawned child, reading CALL/START/FETCH/PUT frames from
// its stdin and replying on its stdout. Frames are read on the goroutine
// running Agent.Run; each CALL and FETCH runs on its own goroutine so a
// long-running callable never blocks the next incoming frame. There is no
// dedicated writer goroutine: whichever goroutine produces a reply writes
// it directly, serialised by a mutex.
package bubble

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/registry"
	"github.com/tetherhq/tether/pkg/wire"
)

// Config configures an Agent's call handling and resource access.
type Config struct {
	// AssetResolver is stored with the Config but not consulted by Agent:
	// RequestAsset always sends its IMP request to the controller, whether
	// or not this field is set.
	AssetResolver registry.AssetResolver
	// WorkDir is the directory PUT/FETCH relative paths resolve against.
	// Empty means the process's current working directory.
	WorkDir string
}

// Agent is the bubble side of one tunnel connection: it owns one stdin/
// stdout pair and dispatches each incoming frame, spawning one goroutine
// per CALL so a slow callable never blocks unrelated traffic — the direct
// analogue of bubble.py's handle_call_thread.
type Agent struct {
	reg *registry.Registry
	cfg Config

	writeMu sync.Mutex
	out     io.Writer

	imports sync.Map // key uint32 req id -> chan importResult, for Agent's own outbound IMP
	wg      sync.WaitGroup

	putsMu sync.Mutex
	puts   map[uint32]*inflightPut

	nextImpID uint32
	impMu     sync.Mutex
}

type importResult struct {
	content []byte
	exists  bool
	err     error
}

// New creates an Agent dispatching calls against reg.
func New(reg *registry.Registry, cfg Config) *Agent {
	if reg == nil {
		reg = registry.Default
	}
	return &Agent{
		reg: reg,
		cfg: cfg,
		// RequestAsset pre-increments, so start one below zero: the first
		// outbound IMP an agent issues unsolicited claims id 0, the slot a
		// controller always treats as unpaired with an outstanding waiter.
		nextImpID: ^uint32(0),
	}
}

// Run reads frames from in until EOF or a protocol error, writing replies
// to out. It blocks until the connection closes, mirroring bubble.py's
// reader() loop driving the whole process's lifetime.
func (a *Agent) Run(in io.Reader, out io.Writer) error {
	a.out = out
	defer a.wg.Wait()

	for {
		frame, err := wire.ReadFrame(in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("bubble: read frame: %w", err)
		}
		a.dispatch(frame)
	}
}

func (a *Agent) writeValue(reqID uint32, op wire.Op, val codec.Value) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wire.WriteValue(a.out, reqID, op, val)
}

func (a *Agent) writeFrame(reqID uint32, op wire.Op, data []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wire.WriteFrame(a.out, wire.Frame{ReqID: reqID, Op: op, Format: wire.FormatRaw, Payload: data})
}

func (a *Agent) dispatch(frame wire.Frame) {
	switch frame.Op {
	case wire.OpStart:
		a.handleStart(frame)
	case wire.OpCall:
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleCall(frame)
		}()
	case wire.OpFetchBegin:
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleFetch(frame)
		}()
	case wire.OpPutBegin:
		a.beginPut(frame)
	case wire.OpPutData:
		a.continuePut(frame)
	case wire.OpPutEnd:
		a.finishPut(frame)
	case wire.OpImp:
		a.resolveOutboundImport(frame)
	}
}

// handleStart answers the connection handshake: it always accepts
// (depth-limit enforcement happens controller-side, since only the
// controller knows the full host path before it dials the next hop) and
// echoes the host back. The path and depthlimit fields are not read.
func (a *Agent) handleStart(frame wire.Frame) {
	val, err := wire.DecodeValue(frame)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "ProtocolError"))
		return
	}
	host, _ := val.Get("host")
	ack := codec.MapOf(map[string]codec.Value{
		"host": host,
	}, []string{"host"})
	_ = a.writeValue(frame.ReqID, wire.OpRet, ack)
}

func errorValue(err error, class string) codec.Value {
	return codec.MapOf(map[string]codec.Value{
		"traceback": codec.String(err.Error()),
		"class":     codec.String(class),
	}, []string{"traceback", "class"})
}

// handleCall looks up and runs the requested callable, replying RET on
// success or EXC with the error text on failure — the Go analogue of
// handle_call_thread's try/except-and-pickle-the-traceback behaviour,
// minus the pickling, since Go errors already carry readable text.
func (a *Agent) handleCall(frame wire.Frame) {
	req, err := wire.DecodeValue(frame)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "ProtocolError"))
		return
	}
	name := req.GetString("callable")
	args, _ := req.Get("args")

	fn, ok := a.reg.Lookup(name)
	if !ok {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(fmt.Errorf("no such callable %q", name), "LookupError"))
		return
	}

	result, err := fn(context.Background(), args)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "CallError"))
		return
	}
	_ = a.writeValue(frame.ReqID, wire.OpRet, result)
}

// resolvePath joins WorkDir with a relative path, leaving absolute paths
// untouched, since a bubble's callables and FETCH/PUT requests commonly
// use absolute remote paths.
func (a *Agent) resolvePath(p string) string {
	if filepath.IsAbs(p) || a.cfg.WorkDir == "" {
		return p
	}
	return filepath.Join(a.cfg.WorkDir, p)
}

// handleFetch streams the local file named in a FETCH_BEGIN request back
// to the controller in FetchChunkSize-sized FETCH_DATA frames, terminated
// by a RET carrying the file's SHA-1 digest. No FETCH_END is ever sent;
// the RET is the sole terminator.
func (a *Agent) handleFetch(frame wire.Frame) {
	const chunkSize = 10 * 1024

	req, err := wire.DecodeValue(frame)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "ProtocolError"))
		return
	}
	path := a.resolvePath(req.GetString("path"))

	f, err := os.Open(path)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "OSError"))
		return
	}
	defer f.Close()

	hasher := sha1.New()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if werr := a.writeFrame(frame.ReqID, wire.OpFetchData, append([]byte(nil), buf[:n]...)); werr != nil {
				return
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(rerr, "OSError"))
			return
		}
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	_ = a.writeValue(frame.ReqID, wire.OpRet, codec.MapOf(map[string]codec.Value{
		"sha1": codec.String(sum),
	}, []string{"sha1"}))
}
