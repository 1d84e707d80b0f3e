// Package engine provides one uniform search-engine interface across three
// implementation tiers: an in-process native engine, an external UCI
// process, and a deterministic stub. The tier is a tagged variant decided
// once at construction and never inferred afterwards.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kapu/chess-insight/internal/position"
	"github.com/kapu/chess-insight/internal/uci"
)

// Limits and Result are shared with the protocol layer; all tiers speak
// the same request/response shapes.
type (
	Limits = uci.Limits
	Result = uci.Result
	Line   = uci.Line
)

// Error kinds, re-exported so callers need only this package.
var (
	ErrProcessSpawn     = uci.ErrProcessSpawn
	ErrProtocolTimeout  = uci.ErrProtocolTimeout
	ErrEngineCrash      = uci.ErrEngineCrash
	ErrConcurrentSearch = uci.ErrConcurrentSearch
	ErrTerminated       = uci.ErrTerminated
	ErrIllegalMove      = position.ErrIllegalMove
)

// Tier identifies which implementation backs an Engine.
type Tier int

const (
	TierNative Tier = iota
	TierExternal
	TierStub
)

func (t Tier) String() string {
	switch t {
	case TierNative:
		return "native"
	case TierExternal:
		return "external"
	case TierStub:
		return "stub"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Request is a tier request: one concrete tier or automatic fallback.
type Request int

const (
	RequestAuto Request = iota
	RequestNative
	RequestExternal
	RequestStub
)

func ParseRequest(s string) (Request, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RequestAuto, nil
	case "native":
		return RequestNative, nil
	case "external":
		return RequestExternal, nil
	case "stub":
		return RequestStub, nil
	default:
		return RequestAuto, fmt.Errorf("unknown engine tier %q", s)
	}
}

func (r Request) String() string {
	switch r {
	case RequestAuto:
		return "auto"
	case RequestNative:
		return "native"
	case RequestExternal:
		return "external"
	case RequestStub:
		return "stub"
	default:
		return fmt.Sprintf("request(%d)", int(r))
	}
}

func parseMultiPVOption(name, value string) (int, bool) {
	if !strings.EqualFold(strings.TrimSpace(name), "multipv") {
		return 0, false
	}
	k, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

// Engine is the uniform interface every tier conforms to. Exactly one
// search may be in flight per instance; implementations reject overlap
// with ErrConcurrentSearch instead of queueing.
type Engine interface {
	Start(ctx context.Context) error
	SetOption(name, value string) error
	SetPosition(fen string, moves []string) error
	Search(ctx context.Context, limits Limits) (Result, error)
	Cancel() error
	Quit() error
	Ready() bool
	Tier() Tier
}
