// Package tunnel implements a single host connection: spawning a bubble
// over a Launcher-provided child process, performing the START handshake,
// and multiplexing CALL/RET/EXC/IMP/FETCH/PUT traffic over its stdio.
package tunnel

import "fmt"

// State is a Tunnel's position in its connection lifecycle.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions enumerates the state machine's allowed edges:
// NEW -> CONNECTING -> CONNECTED -> {CLOSING -> CLOSED}; CONNECTING can
// also fail straight to CLOSED if the handshake errors before completion.
var validTransitions = map[State]map[State]bool{
	StateNew:        {StateConnecting: true},
	StateConnecting: {StateConnected: true, StateClosed: true},
	StateConnected:  {StateClosing: true, StateClosed: true},
	StateClosing:    {StateClosed: true},
	StateClosed:     {},
}

func (s State) canTransitionTo(next State) bool {
	return validTransitions[s][next]
}
