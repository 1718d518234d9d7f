package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("expected 15m session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.SlotGranularity != 30*time.Minute {
		t.Errorf("expected 30m granularity, got %s", cfg.SlotGranularity)
	}
	if cfg.ButtonThreshold != 3 || cfg.ListThreshold != 10 {
		t.Errorf("unexpected card thresholds: %d/%d", cfg.ButtonThreshold, cfg.ListThreshold)
	}
	if cfg.ButtonIDMaxLen != 256 || cfg.ListRowIDMaxLen != 200 {
		t.Errorf("unexpected id ceilings: %d/%d", cfg.ButtonIDMaxLen, cfg.ListRowIDMaxLen)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("SLOT_MAX_RESULTS", "6")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("expected 5m session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.MaxSlotResults != 6 {
		t.Errorf("expected max results 6, got %d", cfg.MaxSlotResults)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
}
