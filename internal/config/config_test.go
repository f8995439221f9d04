package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.MaxConcurrent)
	}
	if cfg.InactivityTimeout.Duration != 10*time.Minute {
		t.Errorf("InactivityTimeout = %v, want 10m", cfg.InactivityTimeout.Duration)
	}
	if cfg.SkipLabel != "epic" {
		t.Errorf("SkipLabel = %q, want epic", cfg.SkipLabel)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
max_concurrent = 5
max_attempts = 2
inactivity_timeout = "3m"
dedup_ttl = "90s"
skip_label = "meta"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", cfg.MaxAttempts)
	}
	if cfg.InactivityTimeout.Duration != 3*time.Minute {
		t.Errorf("InactivityTimeout = %v, want 3m", cfg.InactivityTimeout.Duration)
	}
	if cfg.DedupTTL.Duration != 90*time.Second {
		t.Errorf("DedupTTL = %v, want 90s", cfg.DedupTTL.Duration)
	}
	if cfg.SkipLabel != "meta" {
		t.Errorf("SkipLabel = %q, want meta", cfg.SkipLabel)
	}
	// Unset values keep defaults
	if cfg.Retention.Duration != 7*24*time.Hour {
		t.Errorf("Retention = %v, want 168h", cfg.Retention.Duration)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_concurrent = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for max_concurrent = 0")
	}

	if err := os.WriteFile(path, []byte(`inactivity_timeout = "soon"`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid duration")
	}
}
