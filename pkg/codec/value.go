// Package codec implements pencode, the self-describing binary encoding
// used for structured tunnel payloads: primitive values, sequences, maps
// and sets with identity-preserving back-references for cycles and shared
// sub-objects.
package codec

import "fmt"

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindString
	KindList
	KindTuple
	KindSet
	KindFrozenSet
	KindMap
)

// Value is the dynamic, tagged-union representation of anything the wire
// protocol can carry: always one of null, bool, integer, float, byte
// string, text string, list, tuple, set, frozen set, or map.
//
// Integers and floats are kept as their decimal ASCII text so that values
// round-trip exactly regardless of the numeric width either end of the
// tunnel happens to use internally.
type Value struct {
	kind  Kind
	b     bool
	text  string  // holds Int/Float ascii text, or String contents
	bytes []byte
	items []Value // List, Tuple, Set, FrozenSet
	pairs []Pair  // Map, in insertion order
}

// Pair is a single key/value entry of a Map, preserved in insertion order.
type Pair struct {
	Key   Value
	Value Value
}

// Null is the singular null value.
var Null = Value{kind: KindNull}

// Bool wraps a boolean. Booleans are a distinct kind from Int so that they
// never degenerate into integers on the wire.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an arbitrary-precision integer given as its canonical decimal
// ASCII text (e.g. "-42", "0", "9999999999999999999999").
func Int(ascii string) Value { return Value{kind: KindInt, text: ascii} }

// Float wraps a float given as its ASCII text. "inf", "-inf" and "nan" are
// accepted and preserved verbatim.
func Float(ascii string) Value { return Value{kind: KindFloat, text: ascii} }

// Bytes wraps a raw byte string.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// String wraps a UTF-8 text string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// List wraps an ordered, mutable-in-spirit sequence.
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Tuple wraps a fixed-arity ordered sequence.
func Tuple(items ...Value) Value { return Value{kind: KindTuple, items: items} }

// Set wraps an unordered collection with no guaranteed iteration order
// preserved across encode/decode (only membership is).
func Set(items ...Value) Value { return Value{kind: KindSet, items: items} }

// FrozenSet wraps an immutable Set.
func FrozenSet(items ...Value) Value { return Value{kind: KindFrozenSet, items: items} }

// Map wraps a key/value map. Iteration for encoding walks pairs in the
// order supplied here, preserving insertion order.
func Map(pairs ...Pair) Value {
	return Value{kind: KindMap, pairs: pairs}
}

// MapOf is a convenience constructor for string-keyed maps, the shape used
// by every structured (PENCODE-framed) message payload in §3.
func MapOf(kv map[string]Value, order []string) Value {
	pairs := make([]Pair, 0, len(order))
	for _, k := range order {
		v, ok := kv[k]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Key: String(k), Value: v})
	}
	return Map(pairs...)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }

// AsInt returns the decimal ASCII text of an Int value.
func (v Value) AsInt() string { return v.text }

// AsFloat returns the ASCII text of a Float value.
func (v Value) AsFloat() string { return v.text }

func (v Value) AsBytes() []byte { return v.bytes }

func (v Value) AsString() string { return v.text }

func (v Value) Items() []Value { return v.items }

func (v Value) Pairs() []Pair { return v.pairs }

// Get looks up a string-keyed entry in a Map value. It is O(n) in the
// number of pairs, which is acceptable for the small control-plane maps
// (IMP/RET/EXC/PUT_END/...) this codec actually carries.
func (v Value) Get(key string) (Value, bool) {
	for _, p := range v.pairs {
		if p.Key.kind == KindString && p.Key.text == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// GetString is a convenience accessor combining Get and AsString, defaulting
// to "" when the key is absent or not a string.
func (v Value) GetString(key string) string {
	val, ok := v.Get(key)
	if !ok || val.kind != KindString {
		return ""
	}
	return val.text
}

// GetBool is a convenience accessor combining Get and Bool.
func (v Value) GetBool(key string) bool {
	val, ok := v.Get(key)
	if !ok {
		return false
	}
	return val.Bool()
}

// GetBytes is a convenience accessor combining Get and AsBytes.
func (v Value) GetBytes(key string) []byte {
	val, ok := v.Get(key)
	if !ok || val.kind != KindBytes {
		return nil
	}
	return val.bytes
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return v.text
	case KindFloat:
		return v.text
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	case KindString:
		return fmt.Sprintf("%q", v.text)
	case KindList, KindTuple, KindSet, KindFrozenSet:
		return fmt.Sprintf("%v(%d items)", v.kind, len(v.items))
	case KindMap:
		return fmt.Sprintf("map(%d pairs)", len(v.pairs))
	default:
		return "<invalid>"
	}
}
