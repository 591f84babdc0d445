package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Cache.TTL != 180*time.Second {
		t.Errorf("expected cache TTL 180s, got %v", cfg.Cache.TTL)
	}
	if cfg.Sweeper.Interval != 120*time.Second {
		t.Errorf("expected sweep interval 120s, got %v", cfg.Sweeper.Interval)
	}
	if cfg.Alias.MaxAttempts != 5 {
		t.Errorf("expected 5 alias attempts, got %d", cfg.Alias.MaxAttempts)
	}
	if cfg.Alias.Iterations != 100000 {
		t.Errorf("expected 100000 iterations, got %d", cfg.Alias.Iterations)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("DB_REPLICA_DSNS", "postgres://r1, ,postgres://r2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sweeper.Interval != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Sweeper.Interval)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.Cache.TTL)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Sweeper.Enabled {
		t.Error("expected sweeper disabled")
	}
	if len(cfg.Database.ReplicaDSNs) != 2 {
		t.Errorf("expected 2 replica DSNs, got %v", cfg.Database.ReplicaDSNs)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ALIAS_MAX_ATTEMPTS", "many")
	t.Setenv("SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Alias.MaxAttempts != 5 {
		t.Errorf("expected fallback 5, got %d", cfg.Alias.MaxAttempts)
	}
	if cfg.Sweeper.Interval != 120*time.Second {
		t.Errorf("expected fallback 120s, got %v", cfg.Sweeper.Interval)
	}
}

func TestLoad_RejectsNonPositiveDurations(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SWEEP_INTERVAL", "0s"},
		{"SWEEP_INTERVAL", "-5s"},
		{"CACHE_TTL", "0s"},
		{"RATE_LIMIT_WINDOW", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			if err == nil {
				t.Fatalf("expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("expected error to name %s, got %v", tt.key, err)
			}
		})
	}
}
