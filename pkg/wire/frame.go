// Package wire implements the length-framed message envelope tunnels use
// to exchange opcodes and payloads over a child process's stdio pipes.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Op identifies the operation carried by a frame. Values are fixed on the
// wire and must never be renumbered.
type Op int8

const (
	OpCall       Op = 0
	OpRet        Op = 1
	OpExc        Op = 2
	OpImp        Op = 3
	OpFetchBegin Op = 4
	OpFetchData  Op = 5
	OpFetchEnd   Op = 6 // reserved, never sent
	OpPutBegin   Op = 7
	OpPutData    Op = 8
	OpPutEnd     Op = 9
	OpStart      Op = 10
)

func (o Op) String() string {
	switch o {
	case OpCall:
		return "CALL"
	case OpRet:
		return "RET"
	case OpExc:
		return "EXC"
	case OpImp:
		return "IMP"
	case OpFetchBegin:
		return "FETCH_BEGIN"
	case OpFetchData:
		return "FETCH_DATA"
	case OpFetchEnd:
		return "FETCH_END"
	case OpPutBegin:
		return "PUT_BEGIN"
	case OpPutData:
		return "PUT_DATA"
	case OpPutEnd:
		return "PUT_END"
	case OpStart:
		return "START"
	default:
		return fmt.Sprintf("Op(%d)", int8(o))
	}
}

// Format selects how a frame's payload bytes are interpreted.
type Format int8

const (
	// FormatRaw carries an uninterpreted byte slice, used by FETCH_DATA/
	// PUT_DATA chunk payloads where pencode overhead would be wasted.
	FormatRaw Format = 1
	// FormatPencode carries a pencoded Value, used by every control
	// message (CALL, RET, EXC, IMP, START, *_BEGIN, *_END).
	FormatPencode Format = 2
)

// headerSize is the fixed 10-byte header: u32 size, u32 req_id, i8 op, i8 fmt.
const headerSize = 10

// Frame is one length-prefixed message: a header plus its payload body.
// The header's size field is the byte length of Payload, not including the
// header itself.
type Frame struct {
	ReqID   uint32
	Op      Op
	Format  Format
	Payload []byte
}

// WriteFrame serialises f to w as a single header+payload write sequence.
// Callers needing atomicity across goroutines must serialise calls
// themselves: pkg/tunnel does this with a writeMu held for the header-plus-
// payload write, so two goroutines calling Call/Fetch/Put concurrently
// never interleave their frames.
func WriteFrame(w io.Writer, f Frame) error {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(f.Payload)))
	binary.BigEndian.PutUint32(hdr[4:8], f.ReqID)
	hdr[8] = byte(f.Op)
	hdr[9] = byte(f.Format)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}

// ReadFrame blocks until a complete frame has been read from r, handling
// arbitrary short reads the way a pipe or ssh-multiplexed stream can
// produce. It returns io.EOF only when zero bytes were read for a new
// frame; a partial header or body at EOF is reported as io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("wire: truncated header: %w", err)
		}
		return Frame{}, err
	}
	size := binary.BigEndian.Uint32(hdr[0:4])
	reqID := binary.BigEndian.Uint32(hdr[4:8])
	op := Op(int8(hdr[8]))
	format := Format(int8(hdr[9]))

	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Frame{}, fmt.Errorf("wire: truncated payload (want %d bytes): %w", size, err)
		}
	}
	return Frame{ReqID: reqID, Op: op, Format: format, Payload: payload}, nil
}
