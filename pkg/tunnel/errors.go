package tunnel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorResult is a failure carrying a short, human-readable message but
// no remote traceback, returned for local errors (connection refused,
// handshake failure, depth-limit violation) rather than exceptions raised
// by remote code.
type ErrorResult struct {
	Msg   string
	Cause error
}

func (e *ErrorResult) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ErrorResult) Unwrap() error { return e.Cause }

// RemoteException wraps the verbatim traceback text a bubble's EXC opcode
// carried; the original text is never abstracted away, so a caller can
// always recover it, even after wrapping with fmt.Errorf elsewhere in the
// call stack.
type RemoteException struct {
	// Traceback is the remote-formatted exception text exactly as received.
	TracebackText string
	// ClassName is the remote exception's type name, when the bubble sent
	// one separately from the traceback blob.
	ClassName string
}

func (e *RemoteException) Error() string {
	if e.ClassName != "" {
		return fmt.Sprintf("remote exception (%s): %s", e.ClassName, firstLine(e.TracebackText))
	}
	return fmt.Sprintf("remote exception: %s", firstLine(e.TracebackText))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// DepthLimitError reports that a call chain exceeded the configured
// recursion bound.
type DepthLimitError struct {
	Limit int
	Path  []string
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("Depth limit of %d exceeded at %s", e.Limit, strings.Join(e.Path, " -> "))
}

// Sentinel errors for conditions a caller may want to branch on via
// errors.Is.
var (
	ErrNotConnected    = errors.New("tunnel: not connected")
	ErrAlreadyClosed   = errors.New("tunnel: already closed")
	ErrHandshakeFailed = errors.New("tunnel: handshake failed")
	ErrImportTimeout   = errors.New("tunnel: remote import/asset request timed out")
	ErrInvalidState    = errors.New("tunnel: invalid state transition")
)
