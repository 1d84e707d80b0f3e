package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kapu/chess-insight/internal/uci"
	"go.uber.org/zap"
)

// SelectorConfig parameterizes tier selection.
type SelectorConfig struct {
	// Request is the requested tier; RequestAuto walks the fallback chain
	// native → external → stub and keeps the first tier that starts.
	Request Request
	// NativeEnabled gates the in-process tier.
	NativeEnabled bool
	// BinaryPath locates the external engine binary.
	BinaryPath       string
	Options          uci.Options
	HandshakeTimeout time.Duration
	QuitGrace        time.Duration
	Logger           *zap.Logger
}

// Attempt records one constructor try from the fallback chain.
type Attempt struct {
	Tier Tier
	Err  error
}

// Selection is the outcome: exactly one started, working engine, plus the
// attempt trail so callers can tell a first-choice engine from a fallback.
type Selection struct {
	Engine   Engine
	Tier     Tier
	Attempts []Attempt
}

// Fallback reports whether a tier earlier in the chain was skipped.
func (s *Selection) Fallback() bool {
	return len(s.Attempts) > 1
}

// Select builds and starts one engine. Under RequestAuto each tier failure
// is recorded and logged, never propagated, because the stub at the end of
// the chain cannot fail. An explicit tier request does not fall back; its
// failure is returned directly.
func Select(ctx context.Context, cfg SelectorConfig) (*Selection, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	type constructor struct {
		tier  Tier
		build func() (Engine, error)
	}

	native := constructor{TierNative, func() (Engine, error) {
		if !cfg.NativeEnabled {
			return nil, errors.New("native engine binding disabled")
		}
		return NewNative(logger), nil
	}}
	external := constructor{TierExternal, func() (Engine, error) {
		path := strings.TrimSpace(cfg.BinaryPath)
		if path == "" {
			return nil, fmt.Errorf("%w: engine binary path not configured", ErrProcessSpawn)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProcessSpawn, err)
		}
		return NewExternal(uci.Config{
			BinaryPath:       path,
			Options:          cfg.Options,
			HandshakeTimeout: cfg.HandshakeTimeout,
			QuitGrace:        cfg.QuitGrace,
			Logger:           logger,
		}), nil
	}}
	stub := constructor{TierStub, func() (Engine, error) {
		return NewStub(), nil
	}}

	var chain []constructor
	switch cfg.Request {
	case RequestNative:
		chain = []constructor{native}
	case RequestExternal:
		chain = []constructor{external}
	case RequestStub:
		chain = []constructor{stub}
	default:
		chain = []constructor{native, external, stub}
	}

	sel := &Selection{}
	for _, c := range chain {
		eng, err := c.build()
		if err == nil {
			err = eng.Start(ctx)
			if err != nil {
				_ = eng.Quit()
			}
		}
		sel.Attempts = append(sel.Attempts, Attempt{Tier: c.tier, Err: err})
		if err == nil {
			sel.Engine = eng
			sel.Tier = c.tier
			if sel.Fallback() {
				logger.Info("engine tier selected after fallback",
					zap.String("tier", c.tier.String()),
					zap.String("reasons", attemptSummary(sel.Attempts[:len(sel.Attempts)-1])))
			} else {
				logger.Info("engine tier selected", zap.String("tier", c.tier.String()))
			}
			return sel, nil
		}
		logger.Warn("engine tier unavailable",
			zap.String("tier", c.tier.String()), zap.Error(err))
	}

	// Only reachable with an explicit tier request; the auto chain ends in
	// the stub, which always starts.
	last := sel.Attempts[len(sel.Attempts)-1]
	return nil, fmt.Errorf("engine tier %s unavailable: %w", last.Tier, last.Err)
}

func attemptSummary(attempts []Attempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Tier, a.Err))
	}
	return strings.Join(parts, "; ")
}
