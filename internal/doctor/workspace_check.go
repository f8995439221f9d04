package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"foreman/internal/constants"
	"foreman/internal/workspace"
)

// WorkspaceCheck cross-references workspace directories against active
// dispatch records: an active record whose workspace vanished is an
// error; a directory no record references is an orphan.
type WorkspaceCheck struct {
	FixableCheck
}

// NewWorkspaceCheck creates a new workspace check.
func NewWorkspaceCheck() *WorkspaceCheck {
	return &WorkspaceCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "workspaces",
				CheckDescription: "Check workspace dirs against dispatch records",
				CheckCategory:    CategoryCleanup,
			},
		},
	}
}

// Run reports missing and orphaned workspaces.
func (c *WorkspaceCheck) Run(ctx *CheckContext) *CheckResult {
	missing, orphans, err := c.scan(ctx)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Failed to scan workspaces",
			Details: []string{err.Error()},
		}
	}

	if len(missing) > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%d active dispatch(es) reference missing workspaces", len(missing)),
			Details: missing,
			FixHint: "Reclaim the dispatches with 'fm doctor --fix' after checking the stale-dispatches report",
		}
	}
	if len(orphans) > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d orphaned workspace dir(s)", len(orphans)),
			Details: orphans,
			FixHint: "Run 'fm doctor --fix' to remove them",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Workspaces match dispatch records",
	}
}

// Fix removes orphaned workspace directories. Completed work leaves its
// results in the tracker, not the workspace, so removal is safe.
func (c *WorkspaceCheck) Fix(ctx *CheckContext) error {
	_, orphans, err := c.scan(ctx)
	if err != nil {
		return err
	}
	root := filepath.Join(ctx.StateDir, constants.DirWorkspaces)
	for _, name := range orphans {
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			return err
		}
	}
	return nil
}

func (c *WorkspaceCheck) scan(ctx *CheckContext) (missing, orphans []string, err error) {
	ds, err := ctx.Store.Read()
	if err != nil {
		return nil, nil, err
	}

	referenced := make(map[string]struct{})
	for id, rec := range ds.Dispatches.Active {
		if rec.WorkspaceRef == "" {
			continue
		}
		referenced[filepath.Base(rec.WorkspaceRef)] = struct{}{}
		if !workspace.Exists(rec.WorkspaceRef) {
			missing = append(missing, fmt.Sprintf("%s: %s", id, rec.WorkspaceRef))
		}
	}

	root := filepath.Join(ctx.StateDir, constants.DirWorkspaces)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return missing, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; !ok {
			orphans = append(orphans, entry.Name())
		}
	}
	return missing, orphans, nil
}
