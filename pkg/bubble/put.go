package bubble

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"os"

	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/wire"
)

// inflightPut tracks one PUT in progress: data is written straight to a
// `<path>~tether-tmp` temp file as PUT_DATA frames arrive, and the file is
// renamed into place only once PUT_END's checksum matches.
type inflightPut struct {
	finalPath string
	tmpPath   string
	file      *os.File
	hasher    hash.Hash
}

func (a *Agent) beginPut(frame wire.Frame) {
	req, err := wire.DecodeValue(frame)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "ProtocolError"))
		return
	}
	finalPath := a.resolvePath(req.GetString("path"))
	tmpPath := finalPath + "~tether-tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(err, "OSError"))
		return
	}

	a.putsMu.Lock()
	if a.puts == nil {
		a.puts = make(map[uint32]*inflightPut)
	}
	a.puts[frame.ReqID] = &inflightPut{finalPath: finalPath, tmpPath: tmpPath, file: f, hasher: sha1.New()}
	a.putsMu.Unlock()
}

func (a *Agent) continuePut(frame wire.Frame) {
	a.putsMu.Lock()
	p, ok := a.puts[frame.ReqID]
	a.putsMu.Unlock()
	if !ok {
		return
	}
	p.hasher.Write(frame.Payload)
	if _, err := p.file.Write(frame.Payload); err != nil {
		a.abortPut(frame.ReqID, p, err)
	}
}

func (a *Agent) finishPut(frame wire.Frame) {
	a.putsMu.Lock()
	p, ok := a.puts[frame.ReqID]
	delete(a.puts, frame.ReqID)
	a.putsMu.Unlock()
	if !ok {
		_ = a.writeValue(frame.ReqID, wire.OpExc, errorValue(fmt.Errorf("PUT_END for unknown transfer"), "ProtocolError"))
		return
	}

	req, err := wire.DecodeValue(frame)
	if err != nil {
		a.abortPut(frame.ReqID, p, err)
		return
	}

	if cerr := p.file.Close(); cerr != nil {
		a.abortPut(frame.ReqID, p, cerr)
		return
	}

	got := hex.EncodeToString(p.hasher.Sum(nil))
	want := req.GetString("sha1")
	if want != "" && want != got {
		_ = os.Remove(p.tmpPath)
		a.abortPut(frame.ReqID, p, fmt.Errorf("checksum mismatch: got %s want %s", got, want))
		return
	}

	if err := os.Rename(p.tmpPath, p.finalPath); err != nil {
		_ = os.Remove(p.tmpPath)
		a.abortPut(frame.ReqID, p, err)
		return
	}

	_ = a.writeValue(frame.ReqID, wire.OpRet, codec.MapOf(map[string]codec.Value{
		"sha1": codec.String(got),
	}, []string{"sha1"}))
}

func (a *Agent) abortPut(reqID uint32, p *inflightPut, err error) {
	_ = p.file.Close()
	_ = os.Remove(p.tmpPath)
	_ = a.writeValue(reqID, wire.OpExc, errorValue(err, "OSError"))
}
