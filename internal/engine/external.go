package engine

import (
	"context"

	"github.com/kapu/chess-insight/internal/uci"
)

// External runs a spawned engine process through the UCI protocol client.
type External struct {
	client *uci.Client
}

// NewExternal wraps a protocol client configuration; the process is
// spawned on Start.
func NewExternal(cfg uci.Config) *External {
	return &External{client: uci.NewClient(cfg)}
}

func (e *External) Start(ctx context.Context) error { return e.client.Start(ctx) }

func (e *External) SetOption(name, value string) error { return e.client.SetOption(name, value) }

func (e *External) SetPosition(fen string, moves []string) error {
	return e.client.SetPosition(fen, moves)
}

func (e *External) Search(ctx context.Context, limits Limits) (Result, error) {
	return e.client.Search(ctx, limits)
}

func (e *External) Cancel() error { return e.client.Cancel() }

func (e *External) Quit() error { return e.client.Quit() }

func (e *External) Ready() bool { return e.client.Ready() }

func (e *External) Tier() Tier { return TierExternal }

// NewGame resets engine state between independent analyses.
func (e *External) NewGame(ctx context.Context) error { return e.client.NewGame(ctx) }

// Identity reports the engine's name and author from the handshake.
func (e *External) Identity() uci.Identity { return e.client.Identity() }
