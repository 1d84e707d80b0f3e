package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EngineTier != "auto" {
		t.Fatalf("tier = %q", cfg.EngineTier)
	}
	if cfg.AnalysisDepth != 18 || cfg.GameAnalysisDepth != 15 {
		t.Fatalf("depths = %d/%d", cfg.AnalysisDepth, cfg.GameAnalysisDepth)
	}
	if cfg.BookMaxPly != 8 {
		t.Fatalf("book max ply = %d", cfg.BookMaxPly)
	}
	if cfg.EngineHandshakeTimeout != 5*time.Second || cfg.EngineQuitGrace != 2*time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.EngineHandshakeTimeout, cfg.EngineQuitGrace)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENGINE_TIER", "stub")
	t.Setenv("ENGINE_NATIVE", "on")
	t.Setenv("ENGINE_HANDSHAKE_TIMEOUT_MS", "1500")
	t.Setenv("ANALYSIS_DEPTH", "12")
	t.Setenv("ANALYSIS_MULTIPV", "3")
	t.Setenv("BOOK_MAX_PLY", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EngineTier != "stub" || !cfg.EngineNative {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.EngineHandshakeTimeout != 1500*time.Millisecond {
		t.Fatalf("handshake timeout = %v", cfg.EngineHandshakeTimeout)
	}
	if cfg.AnalysisDepth != 12 || cfg.AnalysisMultiPV != 3 || cfg.BookMaxPly != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	t.Setenv("ENGINE_TIER", "quantum")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRequiresPathForExternalTier(t *testing.T) {
	t.Setenv("ENGINE_TIER", "external")
	t.Setenv("ENGINE_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadClampsMultiPVToMax(t *testing.T) {
	t.Setenv("ANALYSIS_MULTIPV", "9")
	t.Setenv("ANALYSIS_MULTIPV_MAX", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnalysisMultiPV != 4 {
		t.Fatalf("multipv = %d, want clamped to 4", cfg.AnalysisMultiPV)
	}
}
