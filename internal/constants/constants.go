// Package constants defines shared constant values used throughout foreman.
// Centralizing these magic strings improves maintainability and consistency.
package constants

import "time"

// File and directory names within the foreman state directory.
const (
	// StateDirName is the default state directory under the user's home.
	StateDirName = ".foreman"

	// DispatchStoreFile holds the persisted dispatch store.
	DispatchStoreFile = "dispatches.json"

	// DirProjects contains one project dispatch state file per project.
	DirProjects = "projects"

	// DirWorkspaces contains per-item execution workspaces.
	DirWorkspaces = "workspaces"

	// EventsFile is the JSONL lifecycle event log.
	EventsFile = "events.jsonl"

	// ConfigFile is the TOML configuration file name.
	ConfigFile = "config.toml"

	// LockSuffix is appended to a state file path to form its lock marker.
	LockSuffix = ".lock"
)

// Default thresholds for dispatch scheduling and staleness detection.
const (
	// DefaultMaxConcurrent is the per-project cap on simultaneously
	// dispatched items.
	DefaultMaxConcurrent = 3

	// DefaultMaxAttempts bounds the audit-driven rework loop.
	DefaultMaxAttempts = 3

	// DefaultInactivityTimeout aborts a work invocation that has produced
	// no observable activity for this long.
	DefaultInactivityTimeout = 10 * time.Minute

	// DefaultLockStaleness is how old a lock marker must be before a
	// crashed holder's lock may be reclaimed.
	DefaultLockStaleness = 30 * time.Second

	// DefaultDispatchStaleness is how old an active dispatch record must
	// be before it is considered abandoned by a dead process.
	DefaultDispatchStaleness = 30 * time.Minute

	// DefaultDedupTTL is how long a processed trigger key suppresses
	// duplicate deliveries.
	DefaultDedupTTL = 60 * time.Second

	// DefaultDedupSweep is how often expired dedup entries are collected.
	DefaultDedupSweep = 10 * time.Second

	// DefaultRetention is how long completed dispatch records are kept.
	DefaultRetention = 7 * 24 * time.Hour

	// LockRetryInterval is the polling interval while waiting on a lock.
	LockRetryInterval = 100 * time.Millisecond
)

// DefaultSkipLabel marks items excluded from the dependency graph.
// Matching is case-insensitive substring.
const DefaultSkipLabel = "epic"
