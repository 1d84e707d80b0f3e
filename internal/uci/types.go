package uci

import (
	"errors"
	"fmt"
)

// Sentinel errors for the protocol client. Callers match with errors.Is.
var (
	// ErrProcessSpawn covers a missing or unexecutable engine binary.
	ErrProcessSpawn = errors.New("engine process spawn failed")
	// ErrProtocolTimeout covers a handshake or search acknowledgment that
	// never arrived within its bound. The process is terminated first.
	ErrProtocolTimeout = errors.New("engine protocol timeout")
	// ErrEngineCrash covers process exit or stream closure while an
	// operation was pending.
	ErrEngineCrash = errors.New("engine process crashed")
	// ErrConcurrentSearch is returned when a search is attempted while
	// another is still in flight. Requests are rejected, never queued.
	ErrConcurrentSearch = errors.New("search already in flight")
	// ErrNotReady is returned for operations issued outside the Ready state.
	ErrNotReady = errors.New("engine client not ready")
	// ErrNotSearching is returned when Cancel is called with no search
	// in flight.
	ErrNotSearching = errors.New("no search in flight")
	// ErrTerminated is returned for operations issued after Quit.
	ErrTerminated = errors.New("engine client terminated")
)

// State tracks the protocol client's lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateSearching
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateSearching:
		return "searching"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options are the standard engine options applied right after the
// handshake.
type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

// Limits selects exactly one search bound.
type Limits struct {
	Depth          int
	MoveTimeMillis int
	Nodes          int64
}

// Validate enforces the one-active-limit rule.
func (l Limits) Validate() error {
	set := 0
	if l.Depth > 0 {
		set++
	}
	if l.MoveTimeMillis > 0 {
		set++
	}
	if l.Nodes > 0 {
		set++
	}
	switch set {
	case 0:
		return errors.New("no search limit specified")
	case 1:
		return nil
	default:
		return errors.New("exactly one of depth, movetime, nodes may be set")
	}
}

// Line is one candidate line from a (possibly multi-line) search. Scores
// are always from the perspective of the side to move.
type Line struct {
	MultiPV int
	Depth   int
	ScoreCP int
	Mate    int
	IsMate  bool
	PV      []string
}

// Result is the completed outcome of one search.
type Result struct {
	BestMove string
	Ponder   string
	Depth    int
	SelDepth int
	Nodes    int64
	NPS      int64
	TimeMS   int
	Lines    []Line
}

// Identity is the engine's self-reported name and author from the
// handshake.
type Identity struct {
	Name   string
	Author string
}
