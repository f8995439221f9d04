// Package lock provides advisory file locking for foreman state files.
//
// A lock is an OS advisory lock (flock) on a marker file colocated with
// the guarded state file (<path>.lock). The marker also carries JSON
// metadata (PID, acquisition time, hostname) so that a marker left behind
// by a crashed holder can be detected by age and reclaimed instead of
// wedging the store forever.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"foreman/internal/constants"
)

// Common errors
var (
	ErrTimeout     = errors.New("timed out waiting for lock")
	ErrNotLocked   = errors.New("file is not locked")
	ErrInvalidLock = errors.New("invalid lock marker")
)

// Info contains metadata about who holds a lock.
type Info struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname,omitempty"`
}

// Lock guards a single state file via a colocated marker file.
type Lock struct {
	path      string // guarded state file
	lockPath  string // marker file (<path>.lock)
	staleness time.Duration
	fl        *flock.Flock
}

// New creates a Lock for the given state file path. staleness is the age
// past which an abandoned marker may be reclaimed.
func New(path string, staleness time.Duration) *Lock {
	lockPath := path + constants.LockSuffix
	return &Lock{
		path:      path,
		lockPath:  lockPath,
		staleness: staleness,
		fl:        flock.New(lockPath),
	}
}

// Acquire takes the lock, blocking until it is held, a stale marker is
// reclaimed, or ctx expires. On success the marker metadata is written.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	for {
		locked, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring lock: %w", err)
		}
		if locked {
			return l.writeInfo()
		}

		// Held by someone else. If the marker is older than the
		// staleness threshold the holder is presumed dead; remove the
		// marker and retry on a fresh inode.
		if l.reclaimIfStale() {
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrTimeout, l.lockPath)
		case <-time.After(constants.LockRetryInterval):
		}
	}
}

// Release drops the lock and removes the marker.
func (l *Lock) Release() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock marker: %w", err)
	}
	return l.fl.Unlock()
}

// reclaimIfStale removes the marker if it is older than the staleness
// threshold. Returns true if a reclaim happened and acquisition should be
// retried.
func (l *Lock) reclaimIfStale() bool {
	info, err := Read(l.path)
	if err != nil {
		return false
	}
	if time.Since(info.AcquiredAt) < l.staleness {
		return false
	}
	if err := os.Remove(l.lockPath); err != nil {
		return false
	}
	// flock is bound to the removed inode; start over on a new one.
	l.fl = flock.New(l.lockPath)
	return true
}

// writeInfo records holder metadata in the marker file. The write goes
// directly to the locked file (no rename: flock is bound to the inode).
func (l *Lock) writeInfo() error {
	hostname, _ := os.Hostname()
	info := Info{
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
		Hostname:   hostname,
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock info: %w", err)
	}
	if err := os.WriteFile(l.lockPath, data, 0644); err != nil { //nolint:gosec // G306: lock markers are non-sensitive operational data
		_ = l.fl.Unlock()
		return fmt.Errorf("writing lock marker: %w", err)
	}
	return nil
}

// With acquires the lock, runs fn, and releases on all paths.
func With(ctx context.Context, path string, staleness time.Duration, fn func() error) error {
	l := New(path, staleness)
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}

// Read returns the marker metadata for the given state file, or
// ErrNotLocked if no marker exists.
func Read(path string) (*Info, error) {
	data, err := os.ReadFile(path + constants.LockSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLocked
		}
		return nil, fmt.Errorf("reading lock marker: %w", err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLock, err)
	}
	return &info, nil
}

// IsStale reports whether the marker for path exists and is older than
// the given threshold.
func IsStale(path string, staleness time.Duration) bool {
	info, err := Read(path)
	if err != nil {
		return false
	}
	return time.Since(info.AcquiredAt) >= staleness
}

// ForceRelease removes the marker regardless of who holds it.
// Use with caution - only for doctor --fix scenarios.
func ForceRelease(path string) error {
	if err := os.Remove(path + constants.LockSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock marker: %w", err)
	}
	return nil
}
