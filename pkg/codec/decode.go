package codec

import (
	"encoding/binary"
	"fmt"
)

// Decode parses a single pencoded value from buf, returning the value and
// the number of bytes consumed. Back-references are resolved against a
// table of values assigned in the same depth-first, pre-order sequence the
// encoder walked in, matching pdecode.py's br_count/backrefs bookkeeping.
//
// Composite values (List, Map, Set) reserve their backref slot *before*
// decoding their children, so a value can contain a reference to itself
// (e.g. a list appended to itself) — ported from PDecoder._decode, which
// stores the partially-built container in self.backrefs prior to recursing.
func Decode(buf []byte) (Value, int, error) {
	d := &decoder{buf: buf, refs: make(map[int]*Value)}
	v, err := d.decode()
	if err != nil {
		return Value{}, 0, err
	}
	return v, d.off, nil
}

type decoder struct {
	buf  []byte
	off  int
	refs map[int]*Value
}

func (d *decoder) readByte() (byte, error) {
	if d.off >= len(d.buf) {
		return 0, fmt.Errorf("codec: truncated input at offset %d", d.off)
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.buf) {
		return nil, fmt.Errorf("codec: truncated input: need %d bytes at offset %d, have %d", n, d.off, len(d.buf))
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readSize() (int, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}

func (d *decoder) decode() (Value, error) {
	code, err := d.readByte()
	if err != nil {
		return Value{}, err
	}

	// A back-reference is emitted without claiming an id of its own, so it
	// must not claim a slot here either.
	if code == tagBackref {
		refID, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		ref, ok := d.refs[refID]
		if !ok {
			return Value{}, fmt.Errorf("codec: backref to unknown id %d", refID)
		}
		return *ref, nil
	}

	brID := len(d.refs)
	slot := new(Value)
	d.refs[brID] = slot

	var result Value
	switch code {
	case tagNull:
		result = Null
	case tagBytes:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		b, err := d.readBytes(n)
		if err != nil {
			return Value{}, err
		}
		cp := make([]byte, n)
		copy(cp, b)
		result = Bytes(cp)
	case tagString, tagLegacyKey:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		s, err := d.readBytes(n)
		if err != nil {
			return Value{}, err
		}
		result = String(string(s))
	case tagBool:
		tf, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		result = Bool(tf == tagTrue)
	case tagInt:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		s, err := d.readBytes(n)
		if err != nil {
			return Value{}, err
		}
		result = Int(string(s))
	case tagFloat:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		s, err := d.readBytes(n)
		if err != nil {
			return Value{}, err
		}
		result = Float(string(s))
	case tagList, tagSet, tagFrozenSet, tagTuple:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		*slot = Value{kind: kindForTag(code), items: items}
		for i := 0; i < n; i++ {
			item, err := d.decode()
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		result = Value{kind: kindForTag(code), items: items}
	case tagMap:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		pairs := make([]Pair, 0, n)
		*slot = Value{kind: KindMap, pairs: pairs}
		for i := 0; i < n; i++ {
			key, err := d.decode()
			if err != nil {
				return Value{}, err
			}
			val, err := d.decode()
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, Pair{Key: key, Value: val})
		}
		result = Value{kind: KindMap, pairs: pairs}
	default:
		return Value{}, fmt.Errorf("codec: unknown tag %q", code)
	}

	*slot = result
	return result, nil
}

func kindForTag(tag byte) Kind {
	switch tag {
	case tagList:
		return KindList
	case tagSet:
		return KindSet
	case tagFrozenSet:
		return KindFrozenSet
	case tagTuple:
		return KindTuple
	default:
		return KindNull
	}
}
