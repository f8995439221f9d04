package doctor

import (
	"os"
	"path/filepath"

	"foreman/internal/constants"
)

// StateDirCheck verifies the state directory layout exists and is
// writable.
type StateDirCheck struct {
	FixableCheck
}

// NewStateDirCheck creates a new state directory check.
func NewStateDirCheck() *StateDirCheck {
	return &StateDirCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "state-dir",
				CheckDescription: "Check state directory layout",
				CheckCategory:    CategoryCore,
			},
		},
	}
}

// Run verifies the state dir and its subdirectories.
func (c *StateDirCheck) Run(ctx *CheckContext) *CheckResult {
	info, err := os.Stat(ctx.StateDir)
	if os.IsNotExist(err) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "State directory does not exist",
			Details: []string{ctx.StateDir},
			FixHint: "Run 'fm doctor --fix' to create it",
		}
	}
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Cannot stat state directory",
			Details: []string{err.Error()},
		}
	}
	if !info.IsDir() {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "State directory path is not a directory",
			Details: []string{ctx.StateDir},
		}
	}

	var missing []string
	for _, sub := range []string{constants.DirProjects, constants.DirWorkspaces} {
		if _, err := os.Stat(filepath.Join(ctx.StateDir, sub)); os.IsNotExist(err) {
			missing = append(missing, sub)
		}
	}
	if len(missing) > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "State directory is missing subdirectories",
			Details: missing,
			FixHint: "Run 'fm doctor --fix' to create them",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "State directory layout is intact",
	}
}

// Fix creates the state directory and its subdirectories.
func (c *StateDirCheck) Fix(ctx *CheckContext) error {
	for _, sub := range []string{"", constants.DirProjects, constants.DirWorkspaces} {
		if err := os.MkdirAll(filepath.Join(ctx.StateDir, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}
