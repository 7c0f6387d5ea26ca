package codec

import "unsafe"

// sliceHeaderPtr gives a stable identity for a backing
// array so that two Values built from the same underlying slice are
// recognised as "the same object" by Encode, mirroring Python's id()-based
// backref tracking in pencode.py. Values built from distinct slices (even
// with identical contents) are treated as distinct objects, matching the
// reference encoder's behaviour for separately-constructed lists.
func sliceHeaderPtr[T any](s []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))
}
