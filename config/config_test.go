package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GraphKV.Addr != DefaultConfig().GraphKV.Addr {
		t.Errorf("expected default redis addr")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("database:\n  dsn: \"postgres://x\"\ngraphKv:\n  addr: \"redis:6380\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN != "postgres://x" {
		t.Errorf("expected overridden DSN, got %s", cfg.Database.DSN)
	}
	if cfg.GraphKV.Addr != "redis:6380" {
		t.Errorf("expected overridden redis addr, got %s", cfg.GraphKV.Addr)
	}
	if cfg.Query.MaxAlternatives != DefaultConfig().Query.MaxAlternatives {
		t.Errorf("unspecified fields should keep default values")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.MaxAlternatives = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for maxAlternatives > 2")
	}
}
