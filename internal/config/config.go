// Package config provides foreman configuration loaded from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"foreman/internal/constants"
)

// Duration wraps time.Duration for human-friendly TOML values ("30s", "10m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the foreman configuration.
type Config struct {
	// StateDir is where dispatch state, project files, workspaces and the
	// event log live. Defaults to ~/.foreman (FOREMAN_HOME overrides).
	StateDir string `toml:"state_dir,omitempty"`

	// MaxConcurrent caps simultaneously dispatched items per project.
	MaxConcurrent int `toml:"max_concurrent"`

	// MaxAttempts bounds the audit-driven rework loop per item.
	MaxAttempts int `toml:"max_attempts"`

	// Model is the execution sizing passed to the work executor.
	Model string `toml:"model,omitempty"`

	// SkipLabel excludes matching items from the dependency graph
	// (case-insensitive substring match against item labels).
	SkipLabel string `toml:"skip_label"`

	// InactivityTimeout aborts a silent work invocation.
	InactivityTimeout Duration `toml:"inactivity_timeout"`

	// LockStaleness is the age past which a lock marker is reclaimable.
	LockStaleness Duration `toml:"lock_staleness"`

	// DispatchStaleness is the age past which an active dispatch record
	// from a dead process is reclaimable.
	DispatchStaleness Duration `toml:"dispatch_staleness"`

	// DedupTTL is how long trigger-event keys suppress duplicates.
	DedupTTL Duration `toml:"dedup_ttl"`

	// DedupSweep is how often expired dedup entries are collected.
	DedupSweep Duration `toml:"dedup_sweep"`

	// Retention is how long completed dispatch records are kept.
	Retention Duration `toml:"retention"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		StateDir:          defaultStateDir(),
		MaxConcurrent:     constants.DefaultMaxConcurrent,
		MaxAttempts:       constants.DefaultMaxAttempts,
		SkipLabel:         constants.DefaultSkipLabel,
		InactivityTimeout: Duration{constants.DefaultInactivityTimeout},
		LockStaleness:     Duration{constants.DefaultLockStaleness},
		DispatchStaleness: Duration{constants.DefaultDispatchStaleness},
		DedupTTL:          Duration{constants.DefaultDedupTTL},
		DedupSweep:        Duration{constants.DefaultDedupSweep},
		Retention:         Duration{constants.DefaultRetention},
	}
}

// Load reads the config file at path, falling back to defaults if the
// file does not exist. Values present in the file override defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max_concurrent must be >= 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

// LoadFromStateDir loads config.toml from the given state directory.
func LoadFromStateDir(stateDir string) (*Config, error) {
	cfg, err := Load(filepath.Join(stateDir, constants.ConfigFile))
	if err != nil {
		return nil, err
	}
	cfg.StateDir = stateDir
	return cfg, nil
}

// defaultStateDir resolves the state directory: FOREMAN_HOME if set,
// otherwise ~/.foreman.
func defaultStateDir() string {
	if dir := os.Getenv("FOREMAN_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return constants.StateDirName
	}
	return filepath.Join(home, constants.StateDirName)
}
