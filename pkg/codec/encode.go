package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// tag bytes for each wire kind. The legacy 'k' tag is accepted by the
// decoder for backward compatibility but never emitted here.
const (
	tagNull       = 'n'
	tagBytes      = 'b'
	tagString     = 's'
	tagBool       = '1'
	tagInt        = 'i'
	tagFloat      = 'f'
	tagList       = 'l'
	tagTuple      = 't'
	tagSet        = 'q'
	tagFrozenSet  = 'Q'
	tagMap        = 'd'
	tagBackref    = 'R'
	tagLegacyKey  = 'k'
	tagTrue       = 't'
	tagFalse      = 'f'
)

// Encode serialises v using pencode, a length-prefixed binary grammar.
// Shared sub-values (by pointer identity of the underlying slice/pair
// backing arrays) are replaced by back-references after their first
// occurrence, preserving cycles and aliasing.
func Encode(v Value) ([]byte, error) {
	e := &encoder{backrefs: make(map[uintptr]int)}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf      bytes.Buffer
	backrefs map[uintptr]int
	nextID   int
}

func putSize(buf *bytes.Buffer, n int) {
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], uint32(n))
	buf.Write(sz[:])
}

// identity returns a pointer-identity key for values whose sharing must be
// tracked (composite kinds and byte strings — other scalars are encoded fresh every time,
// matching the reference implementation's reliance on CPython small-int/str
// interning being irrelevant to correctness there).
func identity(v Value) (uintptr, bool) {
	switch v.kind {
	case KindList, KindTuple, KindSet, KindFrozenSet:
		if v.items == nil {
			return 0, false
		}
		return sliceHeaderPtr(v.items), true
	case KindMap:
		if v.pairs == nil {
			return 0, false
		}
		return sliceHeaderPtr(v.pairs), true
	case KindBytes:
		if v.bytes == nil {
			return 0, false
		}
		return sliceHeaderPtr(v.bytes), true
	default:
		return 0, false
	}
}

func (e *encoder) encode(v Value) error {
	if id, ok := identity(v); ok {
		if ref, seen := e.backrefs[id]; seen {
			e.buf.WriteByte(tagBackref)
			putSize(&e.buf, ref)
			return nil
		}
		e.backrefs[id] = e.nextID
	}
	e.nextID++

	switch v.kind {
	case KindNull:
		e.buf.WriteByte(tagNull)
	case KindBool:
		e.buf.WriteByte(tagBool)
		if v.b {
			e.buf.WriteByte(tagTrue)
		} else {
			e.buf.WriteByte(tagFalse)
		}
	case KindInt:
		e.buf.WriteByte(tagInt)
		putSize(&e.buf, len(v.text))
		e.buf.WriteString(v.text)
	case KindFloat:
		e.buf.WriteByte(tagFloat)
		putSize(&e.buf, len(v.text))
		e.buf.WriteString(v.text)
	case KindBytes:
		e.buf.WriteByte(tagBytes)
		putSize(&e.buf, len(v.bytes))
		e.buf.Write(v.bytes)
	case KindString:
		e.buf.WriteByte(tagString)
		putSize(&e.buf, len(v.text))
		e.buf.WriteString(v.text)
	case KindList, KindSet, KindFrozenSet, KindTuple:
		var tag byte
		switch v.kind {
		case KindList:
			tag = tagList
		case KindSet:
			tag = tagSet
		case KindFrozenSet:
			tag = tagFrozenSet
		case KindTuple:
			tag = tagTuple
		}
		e.buf.WriteByte(tag)
		putSize(&e.buf, len(v.items))
		for _, item := range v.items {
			if err := e.encode(item); err != nil {
				return err
			}
		}
	case KindMap:
		e.buf.WriteByte(tagMap)
		putSize(&e.buf, len(v.pairs))
		for _, p := range v.pairs {
			if err := e.encode(p.Key); err != nil {
				return err
			}
			if err := e.encode(p.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: unserialisable value kind %v", v.kind)
	}
	return nil
}
