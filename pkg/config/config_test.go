package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8090" {
		t.Errorf("expected default port 8090, got %s", cfg.Port)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected default HTTP timeout 10s, got %s", cfg.HTTPTimeout)
	}
	if cfg.RunDeadline != 5*time.Minute {
		t.Errorf("expected default run deadline 5m, got %s", cfg.RunDeadline)
	}
	if cfg.Database.Enabled {
		t.Error("archive should be disabled without DATABASE_URL")
	}
	if !cfg.Polymarket.Enabled {
		t.Error("polymarket should default to enabled")
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("ENV", "sandbox")

	if _, err := Load(); err == nil {
		t.Error("expected validation error for unknown ENV")
	}
}

func TestLoadDeadlineOrdering(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("HTTP_TIMEOUT", "1m")
	t.Setenv("RUN_DEADLINE", "30s")

	if _, err := Load(); err == nil {
		t.Error("expected error when RUN_DEADLINE <= HTTP_TIMEOUT")
	}
}

func TestDatabaseEnabled(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/macrolens")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Database.Enabled {
		t.Error("archive should be enabled with DATABASE_URL set")
	}
}
