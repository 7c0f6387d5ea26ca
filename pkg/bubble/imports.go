package bubble

import (
	"context"
	"fmt"

	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/wire"
)

// RequestAsset lets a running callable ask the controller for an
// auxiliary data asset by key, blocking until it arrives or ctx expires.
// It issues an IMP frame and waits for the matching IMP reply, the
// mirror image of pkg/tunnel.Tunnel.handleImp on the controller side.
func (a *Agent) RequestAsset(ctx context.Context, key string) ([]byte, error) {
	a.impMu.Lock()
	a.nextImpID++
	reqID := a.nextImpID
	a.impMu.Unlock()

	ch := make(chan importResult, 1)
	a.imports.Store(reqID, ch)
	defer a.imports.Delete(reqID)

	payload := codec.MapOf(map[string]codec.Value{
		"key": codec.String(key),
	}, []string{"key"})
	if err := a.writeValue(reqID, wire.OpImp, payload); err != nil {
		return nil, fmt.Errorf("bubble: send IMP %q: %w", key, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if !res.exists {
			return nil, fmt.Errorf("bubble: asset %q not found on controller", key)
		}
		return res.content, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("bubble: asset %q import timed out: %w", key, ctx.Err())
	}
}

// resolveOutboundImport delivers an IMP reply frame to whichever
// RequestAsset call is waiting on its req_id.
func (a *Agent) resolveOutboundImport(frame wire.Frame) {
	v, ok := a.imports.Load(frame.ReqID)
	if !ok {
		return
	}
	ch := v.(chan importResult)

	val, err := wire.DecodeValue(frame)
	if err != nil {
		ch <- importResult{err: err}
		return
	}
	if errText := val.GetString("error"); errText != "" {
		ch <- importResult{err: fmt.Errorf("bubble: controller: %s", errText)}
		return
	}
	ch <- importResult{exists: val.GetBool("exists"), content: val.GetBytes("content")}
}
