package bubble

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/registry"
	"github.com/tetherhq/tether/pkg/wire"
)

func newHarness(t *testing.T, reg *registry.Registry) (*Agent, io.Writer, io.Reader, func()) {
	t.Helper()
	toAgentR, toAgentW := io.Pipe()
	fromAgentR, fromAgentW := io.Pipe()
	agent := New(reg, Config{})

	done := make(chan struct{})
	go func() {
		_ = agent.Run(toAgentR, fromAgentW)
		close(done)
	}()

	cleanup := func() {
		toAgentW.Close()
		<-done
	}
	return agent, toAgentW, fromAgentR, cleanup
}

func TestStartHandshake(t *testing.T) {
	reg := registry.New()
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	payload := codec.MapOf(map[string]codec.Value{"host": codec.String("h0")}, []string{"host"})
	require.NoError(t, wire.WriteValue(toAgent, 1, wire.OpStart, payload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpRet, frame.Op)
	val, err := wire.DecodeValue(frame)
	require.NoError(t, err)
	assert.Equal(t, "h0", val.GetString("host"))
}

func TestCallDispatchesToRegistry(t *testing.T) {
	reg := registry.New()
	reg.Register("greet", func(_ context.Context, args codec.Value) (codec.Value, error) {
		return codec.String("hello " + args.Items()[0].AsString()), nil
	})
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	payload := codec.MapOf(map[string]codec.Value{
		"callable": codec.String("greet"),
		"args":     codec.Tuple(codec.String("world")),
	}, []string{"callable", "args"})
	require.NoError(t, wire.WriteValue(toAgent, 5, wire.OpCall, payload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), frame.ReqID)
	assert.Equal(t, wire.OpRet, frame.Op)
	val, err := wire.DecodeValue(frame)
	require.NoError(t, err)
	assert.Equal(t, "hello world", val.AsString())
}

func TestCallUnknownCallableReturnsExc(t *testing.T) {
	reg := registry.New()
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	payload := codec.MapOf(map[string]codec.Value{
		"callable": codec.String("missing"),
		"args":     codec.Tuple(),
	}, []string{"callable", "args"})
	require.NoError(t, wire.WriteValue(toAgent, 1, wire.OpCall, payload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpExc, frame.Op)
}

func TestCallPropagatesCallableError(t *testing.T) {
	reg := registry.New()
	reg.Register("boom", func(context.Context, codec.Value) (codec.Value, error) {
		return codec.Value{}, assertError{}
	})
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	payload := codec.MapOf(map[string]codec.Value{
		"callable": codec.String("boom"),
		"args":     codec.Tuple(),
	}, []string{"callable", "args"})
	require.NoError(t, wire.WriteValue(toAgent, 1, wire.OpCall, payload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpExc, frame.Op)
	val, err := wire.DecodeValue(frame)
	require.NoError(t, err)
	assert.Equal(t, "CallError", val.GetString("class"))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestPutThenGetRoundTripsToDisk(t *testing.T) {
	reg := registry.New()
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	path := t.TempDir() + "/put-target"
	content := []byte("put payload contents")

	beginPayload := codec.MapOf(map[string]codec.Value{"path": codec.String(path)}, []string{"path"})
	require.NoError(t, wire.WriteValue(toAgent, 9, wire.OpPutBegin, beginPayload))
	require.NoError(t, wire.WriteFrame(toAgent, wire.Frame{ReqID: 9, Op: wire.OpPutData, Format: wire.FormatRaw, Payload: content}))

	sum := sha1Hex(content)
	endPayload := codec.MapOf(map[string]codec.Value{"sha1": codec.String(sum)}, []string{"sha1"})
	require.NoError(t, wire.WriteValue(toAgent, 9, wire.OpPutEnd, endPayload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpRet, frame.Op)

	fetchPayload := codec.MapOf(map[string]codec.Value{"path": codec.String(path)}, []string{"path"})
	require.NoError(t, wire.WriteValue(toAgent, 10, wire.OpFetchBegin, fetchPayload))

	dataFrame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpFetchData, dataFrame.Op)
	assert.Equal(t, content, dataFrame.Payload)

	retFrame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpRet, retFrame.Op)
}

func TestPutChecksumMismatchIsRejected(t *testing.T) {
	reg := registry.New()
	_, toAgent, fromAgent, cleanup := newHarness(t, reg)
	defer cleanup()

	path := t.TempDir() + "/bad-put"
	beginPayload := codec.MapOf(map[string]codec.Value{"path": codec.String(path)}, []string{"path"})
	require.NoError(t, wire.WriteValue(toAgent, 1, wire.OpPutBegin, beginPayload))
	require.NoError(t, wire.WriteFrame(toAgent, wire.Frame{ReqID: 1, Op: wire.OpPutData, Format: wire.FormatRaw, Payload: []byte("data")}))

	endPayload := codec.MapOf(map[string]codec.Value{"sha1": codec.String("0000000000000000000000000000000000000000")}, []string{"sha1"})
	require.NoError(t, wire.WriteValue(toAgent, 1, wire.OpPutEnd, endPayload))

	frame, err := wire.ReadFrame(fromAgent)
	require.NoError(t, err)
	assert.Equal(t, wire.OpExc, frame.Op)
}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
