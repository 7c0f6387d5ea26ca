package wire

import (
	"fmt"
	"io"

	"github.com/tetherhq/tether/pkg/codec"
)

// WriteValue pencodes val and writes it as a frame's payload. It is the
// path every control opcode (CALL, RET, EXC, IMP, START, *_BEGIN, *_END)
// uses; only FETCH_DATA/PUT_DATA bypass it in favour of WriteFrame with
// FormatRaw directly.
func WriteValue(w io.Writer, reqID uint32, op Op, val codec.Value) error {
	payload, err := codec.Encode(val)
	if err != nil {
		return fmt.Errorf("wire: encode %s payload: %w", op, err)
	}
	return WriteFrame(w, Frame{ReqID: reqID, Op: op, Format: FormatPencode, Payload: payload})
}

// DecodeValue decodes a frame's payload as a pencoded Value. It is an error
// to call this on a frame carrying FormatRaw data.
func DecodeValue(f Frame) (codec.Value, error) {
	if f.Format != FormatPencode {
		return codec.Value{}, fmt.Errorf("wire: frame format %d is not pencode", f.Format)
	}
	val, n, err := codec.Decode(f.Payload)
	if err != nil {
		return codec.Value{}, fmt.Errorf("wire: decode %s payload: %w", f.Op, err)
	}
	if n != len(f.Payload) {
		return codec.Value{}, fmt.Errorf("wire: %s payload has %d trailing bytes", f.Op, len(f.Payload)-n)
	}
	return val, nil
}
