package ingest

import (
	"context"
	"time"
)

// SessionState is the lifecycle state of a shard session.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateHandshaking
	StateSubscribing
	StateActive
	StateClosed
	StateFailed
)

var stateNames = map[SessionState]string{
	StateConnecting:  "Connecting",
	StateHandshaking: "Handshaking",
	StateSubscribing: "Subscribing",
	StateActive:      "Active",
	StateClosed:      "Closed",
	StateFailed:      "Failed",
}

func (s SessionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// canTransition encodes the session state machine. Failed is reachable from
// every non-terminal state; Closed only from Active, or from any
// non-terminal state on shutdown.
func canTransition(from, to SessionState, shutdown bool) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateFailed:
		return true
	case StateClosed:
		return from == StateActive || shutdown
	case StateHandshaking:
		return from == StateConnecting
	case StateSubscribing:
		return from == StateConnecting || from == StateHandshaking
	case StateActive:
		return from == StateSubscribing
	}
	return false
}

// Transition is one observed state change.
type Transition struct {
	ShardID int
	From    SessionState
	To      SessionState
	Cause   error
	At      time.Time
}

// StateObserver is called synchronously on every transition, from the
// session's goroutine.
type StateObserver func(ctx context.Context, t Transition)

// Counts is a snapshot of how many sessions are in each state.
type Counts struct {
	Pending int // Connecting, Handshaking or Subscribing
	Active  int
	Closed  int
	Failed  int
	Total   int
}
