package config

import (
	"strings"
	"testing"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/morgue")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
	if cfg.OccupancyAlertHours != 24 {
		t.Errorf("OccupancyAlertHours = %d, want 24", cfg.OccupancyAlertHours)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool bounds = %d/%d", cfg.DBMinConns, cfg.DBMaxConns)
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/morgue")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestValidateProductionAuth(t *testing.T) {
	cfg := &Config{Env: "production", OccupancyAlertHours: 24, DBMaxConns: 10, DBMinConns: 2}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for production without auth configuration")
	}
	if !strings.Contains(err.Error(), "AUTH_") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.AuthSigningKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with signing key: %v", err)
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := &Config{Env: "development", OccupancyAlertHours: 0, DBMaxConns: 10, DBMinConns: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero OCCUPANCY_ALERT_HOURS")
	}

	cfg = &Config{Env: "development", OccupancyAlertHours: 24, DBMaxConns: 2, DBMinConns: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when DB_MIN_CONNS exceeds DB_MAX_CONNS")
	}
}
