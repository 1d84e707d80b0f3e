package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig carries every knob the analysis core reads. Values come from
// environment variables with sensible defaults; nothing else mutates it
// after Load returns.
type AppConfig struct {
	EngineTier             string
	EnginePath             string
	EngineNative           bool
	EngineThreads          int
	EngineHashMB           int
	EngineHandshakeTimeout time.Duration
	EngineQuitGrace        time.Duration

	AnalysisDepth     int
	AnalysisMultiPV   int
	MultiPVMax        int
	GameAnalysisDepth int

	BookMaxPly       int
	BookPolyglotPath string

	RedisURL    string
	CacheTTLSec int

	DatabaseURL string
}

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultQuitGrace        = 2 * time.Second
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineTier:             "auto",
		EngineThreads:          1,
		EngineHashMB:           64,
		EngineHandshakeTimeout: defaultHandshakeTimeout,
		EngineQuitGrace:        defaultQuitGrace,
		AnalysisDepth:          18,
		AnalysisMultiPV:        1,
		MultiPVMax:             5,
		GameAnalysisDepth:      15,
		BookMaxPly:             8,
		CacheTTLSec:            3600,
	}

	if v := strings.TrimSpace(os.Getenv("ENGINE_TIER")); v != "" {
		cfg.EngineTier = strings.ToLower(v)
	}
	cfg.EnginePath = strings.TrimSpace(os.Getenv("ENGINE_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_NATIVE")); v != "" {
		cfg.EngineNative = strings.EqualFold(v, "on") || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HANDSHAKE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHandshakeTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_QUIT_GRACE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineQuitGrace = time.Duration(n) * time.Millisecond
		}
	}

	if v := strings.TrimSpace(os.Getenv("ANALYSIS_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_MULTIPV")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisMultiPV = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_MULTIPV_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MultiPVMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_ANALYSIS_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GameAnalysisDepth = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("BOOK_MAX_PLY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BookMaxPly = n
		}
	}
	cfg.BookPolyglotPath = strings.TrimSpace(os.Getenv("BOOK_POLYGLOT_PATH"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTLSec = n
		}
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	switch cfg.EngineTier {
	case "auto", "native", "external", "stub":
	default:
		return nil, errors.New("ENGINE_TIER must be one of auto, native, external, stub")
	}
	if cfg.EngineTier == "external" && cfg.EnginePath == "" {
		return nil, errors.New("ENGINE_PATH is required when ENGINE_TIER=external")
	}
	if cfg.AnalysisMultiPV > cfg.MultiPVMax {
		cfg.AnalysisMultiPV = cfg.MultiPVMax
	}

	return cfg, nil
}
