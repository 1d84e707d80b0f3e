// enginecheck probes the engine tiers available in the current
// environment: it runs the selector, reports which tier came up and why,
// and fires a shallow sanity search.
package main

import (
	"context"
	"log"
	"time"

	appcfg "github.com/kapu/chess-insight/internal/config"
	"github.com/kapu/chess-insight/internal/engine"
	"github.com/kapu/chess-insight/internal/obslog"
	"github.com/kapu/chess-insight/internal/uci"
)

func main() {
	obslog.InitFromEnv()
	defer obslog.L().Sync() //nolint:errcheck

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	request, err := engine.ParseRequest(cfg.EngineTier)
	if err != nil {
		log.Fatalf("engine tier: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sel, err := engine.Select(ctx, engine.SelectorConfig{
		Request:       request,
		NativeEnabled: cfg.EngineNative,
		BinaryPath:    cfg.EnginePath,
		Options: uci.Options{
			Threads: cfg.EngineThreads,
			HashMB:  cfg.EngineHashMB,
		},
		HandshakeTimeout: cfg.EngineHandshakeTimeout,
		QuitGrace:        cfg.EngineQuitGrace,
		Logger:           obslog.L(),
	})
	if err != nil {
		log.Fatalf("no engine available: %v", err)
	}
	defer sel.Engine.Quit() //nolint:errcheck

	log.Printf("tier: %s (fallback=%v)", sel.Tier, sel.Fallback())
	for _, attempt := range sel.Attempts {
		if attempt.Err != nil {
			log.Printf("  %s: %v", attempt.Tier, attempt.Err)
		} else {
			log.Printf("  %s: ok", attempt.Tier)
		}
	}
	if ext, ok := sel.Engine.(*engine.External); ok {
		id := ext.Identity()
		log.Printf("identity: %s by %s", id.Name, id.Author)
	}

	if err := sel.Engine.SetPosition("startpos", nil); err != nil {
		log.Fatalf("setposition: %v", err)
	}
	result, err := sel.Engine.Search(ctx, engine.Limits{Depth: 6})
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	log.Printf("bestmove %s depth=%d nodes=%d time=%dms",
		result.BestMove, result.Depth, result.Nodes, result.TimeMS)
}
