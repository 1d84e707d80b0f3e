// Package builder wires the analysis core: config in, one started engine
// plus book, cache, coach, analyzers, and repository out. There are no
// package-level singletons; everything hangs off the returned Deps.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/chess-insight/internal/analysis"
	"github.com/kapu/chess-insight/internal/book"
	"github.com/kapu/chess-insight/internal/cache"
	"github.com/kapu/chess-insight/internal/coach"
	"github.com/kapu/chess-insight/internal/config"
	"github.com/kapu/chess-insight/internal/engine"
	"github.com/kapu/chess-insight/internal/store"
	"github.com/kapu/chess-insight/internal/uci"
	"go.uber.org/zap"
)

// Deps is the wired object graph.
type Deps struct {
	Selection    *engine.Selection
	Book         *book.Book
	Coach        *coach.Coach
	Analyzer     *analysis.Analyzer
	GameAnalyzer *analysis.GameAnalyzer
	Cache        *cache.Store
	Repo         store.Repository
	Logger       *zap.Logger
}

// New builds everything from cfg. Redis and the database are optional:
// without Redis the analyzer runs uncached, without a database reports go
// to the in-memory repository.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	request, err := engine.ParseRequest(cfg.EngineTier)
	if err != nil {
		return nil, err
	}
	selection, err := engine.Select(ctx, engine.SelectorConfig{
		Request:       request,
		NativeEnabled: cfg.EngineNative,
		BinaryPath:    cfg.EnginePath,
		Options: uci.Options{
			Threads: cfg.EngineThreads,
			HashMB:  cfg.EngineHashMB,
			MultiPV: cfg.AnalysisMultiPV,
		},
		HandshakeTimeout: cfg.EngineHandshakeTimeout,
		QuitGrace:        cfg.EngineQuitGrace,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("select engine: %w", err)
	}

	openings, err := book.New(book.Config{
		MaxPly:       cfg.BookMaxPly,
		PolyglotPath: cfg.BookPolyglotPath,
		Logger:       logger,
	})
	if err != nil {
		_ = selection.Engine.Quit()
		return nil, fmt.Errorf("init opening book: %w", err)
	}

	var evalCache *cache.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		evalCache, err = cache.New(cfg.RedisURL, time.Duration(cfg.CacheTTLSec)*time.Second, logger)
		if err != nil {
			_ = selection.Engine.Quit()
			return nil, fmt.Errorf("init cache: %w", err)
		}
	}

	var repo store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err = store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			_ = selection.Engine.Quit()
			if evalCache != nil {
				_ = evalCache.Close()
			}
			return nil, fmt.Errorf("init repository: %w", err)
		}
	} else {
		repo = store.NewMemory()
	}

	var analysisCache analysis.Cache
	if evalCache != nil {
		analysisCache = evalCache
	}
	analyzer := analysis.New(analysis.Config{
		Engine:     selection.Engine,
		Cache:      analysisCache,
		MaxMultiPV: cfg.MultiPVMax,
		Logger:     logger,
	})

	return &Deps{
		Selection: selection,
		Book:      openings,
		Coach:     coach.New(openings, logger),
		Analyzer:  analyzer,
		GameAnalyzer: analysis.NewGameAnalyzer(analysis.GameConfig{
			Analyzer: analyzer,
			Depth:    cfg.GameAnalysisDepth,
			Logger:   logger,
		}),
		Cache:  evalCache,
		Repo:   repo,
		Logger: logger,
	}, nil
}

// Close releases the engine process and every open connection. Safe to
// call more than once.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var first error
	if d.Selection != nil && d.Selection.Engine != nil {
		if err := d.Selection.Engine.Quit(); err != nil && first == nil {
			first = err
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	if d.Repo != nil {
		if err := d.Repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
