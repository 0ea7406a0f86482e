package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_DefaultsApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.yml")
	raw := []byte(`schema_version: v1
brokers: [localhost:9092]
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CommitMode != CommitAuto {
		t.Fatalf("want auto commit default, got %q", cfg.CommitMode)
	}
	if cfg.StartFrom != "newest" {
		t.Fatalf("want newest default, got %q", cfg.StartFrom)
	}
	if cfg.BackPressure.Capacity != 30_000 || cfg.BackPressure.CheckInt != 100*time.Millisecond {
		t.Fatalf("unexpected backpressure defaults: %+v", cfg.BackPressure)
	}
	if cfg.Checkpoint.CommitInt != 5*time.Second {
		t.Fatalf("unexpected checkpoint default: %+v", cfg.Checkpoint)
	}
	if cfg.Version == "" {
		t.Fatal("want a default kafka version")
	}
}

func TestLoadConfig_RejectsUnknownSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.yml")
	if err := os.WriteFile(path, []byte("schema_version: v2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported schema_version")
	}
}

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CommitMode != CommitAuto || cfg.StartFrom != "newest" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
