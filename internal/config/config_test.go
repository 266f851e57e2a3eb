package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadEngine(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.MaxSize = 0
	cfg.Engine.MinProfit = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_size") {
		t.Errorf("error should mention max_size, got: %v", err)
	}
	if !strings.Contains(err.Error(), "min_profit") {
		t.Errorf("error should mention min_profit, got: %v", err)
	}
}

func TestValidateLiveDestinationRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.HitBtc.OrderDestination = "hitbtc"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without credentials")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}

	cfg.HitBtc.ApiKey = "k"
	cfg.HitBtc.Secret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config with credentials: %v", err)
	}
}

func TestValidateUnknownOrderDestination(t *testing.T) {
	cfg := Defaults()
	cfg.HitBtc.OrderDestination = "binance"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown order_destination")
	}
}

func TestValidateArchiverRequiresPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = true
	cfg.Postgres.Enabled = false

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "archiver") {
		t.Errorf("error should mention the archiver, got: %v", err)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
environment = "prod"
log_level = "debug"

[engine]
max_size = 0.05
min_profit = 0.02

[hitbtc]
symbol = "LTCUSD"

[s3]
archive_interval = "6h"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "prod" {
		t.Errorf("environment = %q, want prod", cfg.Environment)
	}
	if cfg.Engine.MaxSize != 0.05 {
		t.Errorf("max_size = %v, want 0.05", cfg.Engine.MaxSize)
	}
	if cfg.HitBtc.Symbol != "LTCUSD" {
		t.Errorf("symbol = %q, want LTCUSD", cfg.HitBtc.Symbol)
	}
	if cfg.S3.ArchiveInterval.Duration != 6*time.Hour {
		t.Errorf("archive_interval = %v, want 6h", cfg.S3.ArchiveInterval.Duration)
	}
	// untouched keys keep defaults
	if cfg.Server.Port != 8000 {
		t.Errorf("server port = %d, want default 8000", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBOT_ENGINE_MIN_PROFIT", "0.5")
	t.Setenv("ARBOT_HITBTC_SYMBOL", "ETHUSD")
	t.Setenv("ARBOT_SERVER_ENABLED", "false")
	t.Setenv("ARBOT_NOTIFY_EVENTS", "start, stop")

	cfg := Defaults()
	applyEnv(&cfg)

	if cfg.Engine.MinProfit != 0.5 {
		t.Errorf("min_profit = %v, want 0.5", cfg.Engine.MinProfit)
	}
	if cfg.HitBtc.Symbol != "ETHUSD" {
		t.Errorf("symbol = %q, want ETHUSD", cfg.HitBtc.Symbol)
	}
	if cfg.Server.Enabled {
		t.Error("server should be disabled via env")
	}
	if len(cfg.Notify.Events) != 2 || cfg.Notify.Events[0] != "start" || cfg.Notify.Events[1] != "stop" {
		t.Errorf("events = %v, want [start stop]", cfg.Notify.Events)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("ARBOT_ENGINE_MAX_SIZE", "not-a-number")

	cfg := Defaults()
	applyEnv(&cfg)

	if cfg.Engine.MaxSize != 0.025 {
		t.Errorf("max_size = %v, want default 0.025", cfg.Engine.MaxSize)
	}
}
