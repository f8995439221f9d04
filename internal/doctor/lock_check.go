package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foreman/internal/constants"
	"foreman/internal/lock"
)

// LockCheck finds stale lock markers in the state directory, left by
// holders that died without releasing.
type LockCheck struct {
	FixableCheck
}

// NewLockCheck creates a new lock marker check.
func NewLockCheck() *LockCheck {
	return &LockCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "locks",
				CheckDescription: "Check for stale lock markers",
				CheckCategory:    CategoryState,
			},
		},
	}
}

// Run scans for lock markers past the staleness threshold.
func (c *LockCheck) Run(ctx *CheckContext) *CheckResult {
	stale, err := c.staleMarkers(ctx)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Failed to scan for lock markers",
			Details: []string{err.Error()},
		}
	}
	if len(stale) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No stale lock markers",
		}
	}

	details := make([]string, 0, len(stale))
	for _, path := range stale {
		if info, err := lock.Read(path); err == nil {
			details = append(details, fmt.Sprintf("%s (pid %d)", filepath.Base(path), info.PID))
		} else {
			details = append(details, filepath.Base(path))
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d stale lock marker(s)", len(stale)),
		Details: details,
		FixHint: "Run 'fm doctor --fix' to release them",
	}
}

// Fix force-releases the stale markers.
func (c *LockCheck) Fix(ctx *CheckContext) error {
	stale, err := c.staleMarkers(ctx)
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := lock.ForceRelease(path); err != nil {
			return err
		}
	}
	return nil
}

// staleMarkers returns stale marker paths in the state dir and the
// projects subdir.
func (c *LockCheck) staleMarkers(ctx *CheckContext) ([]string, error) {
	staleness := ctx.Config.LockStaleness.Duration
	var stale []string
	for _, dir := range []string{ctx.StateDir, filepath.Join(ctx.StateDir, constants.DirProjects)} {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), constants.LockSuffix) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if lock.IsStale(path, staleness) {
				stale = append(stale, path)
			}
		}
	}
	return stale, nil
}
