package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.PingCount != 20 {
		t.Fatalf("want ping_count 20, got %d", cfg.PingCount)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Fatalf("want tick 10s, got %v", cfg.TickInterval)
	}
	if cfg.EarlyStopOnSuccess {
		t.Fatalf("exhaustive sampling should be the default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PING_COUNT", "10")
	t.Setenv("PING_TIMEOUT_MS", "250")
	t.Setenv("EARLY_STOP_ON_SUCCESS", "true")
	t.Setenv("ADMIN_API_KEYS", "k1, k2")

	cfg := FromEnv()
	if cfg.PingCount != 10 {
		t.Fatalf("want 10, got %d", cfg.PingCount)
	}
	if cfg.PingTimeout != 250*time.Millisecond {
		t.Fatalf("want 250ms, got %v", cfg.PingTimeout)
	}
	if !cfg.EarlyStopOnSuccess {
		t.Fatalf("want early stop enabled")
	}
	if len(cfg.AdminAPIKeys) != 2 || cfg.AdminAPIKeys[1] != "k2" {
		t.Fatalf("want trimmed key list, got %v", cfg.AdminAPIKeys)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netprobe.yaml")
	body := "ping_count: 5\naddr: \"0.0.0.0:9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NETPROBE_CONFIG", path)
	t.Setenv("PING_COUNT", "7") // env wins over file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Fatalf("want file addr, got %q", cfg.Addr)
	}
	if cfg.PingCount != 7 {
		t.Fatalf("want env override 7, got %d", cfg.PingCount)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.BackoffFactor = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for backoff < 1")
	}
	cfg = Defaults()
	cfg.PingCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for zero ping_count")
	}
}
