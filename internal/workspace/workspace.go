// Package workspace allocates isolated execution environments for work
// items. The dispatch core stores the returned reference opaquely.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"foreman/internal/constants"
)

// Provisioner allocates or reuses a workspace for an item.
type Provisioner interface {
	// Provision returns an opaque workspace reference for the item.
	Provision(ctx context.Context, itemID string) (string, error)
}

// DirProvisioner provisions one directory per item under the state
// directory. An existing directory is reused (rework attempts keep
// their working state).
type DirProvisioner struct {
	stateDir string
}

// NewDirProvisioner creates a directory-based provisioner.
func NewDirProvisioner(stateDir string) *DirProvisioner {
	return &DirProvisioner{stateDir: stateDir}
}

// Provision creates (or reuses) the item's workspace directory and
// returns its path as the reference.
func (p *DirProvisioner) Provision(ctx context.Context, itemID string) (string, error) {
	dir := filepath.Join(p.stateDir, constants.DirWorkspaces, itemID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("provisioning workspace for %s: %w", itemID, err)
	}
	return dir, nil
}

// Exists reports whether a workspace reference still points at a
// directory on disk. Used by the doctor to find orphaned references.
func Exists(ref string) bool {
	if ref == "" {
		return false
	}
	info, err := os.Stat(ref)
	return err == nil && info.IsDir()
}
