package doctor

import (
	"os"
	"path/filepath"

	"foreman/internal/config"
	"foreman/internal/constants"
)

// ConfigCheck verifies config.toml parses and validates. A missing file
// is fine; defaults apply.
type ConfigCheck struct {
	BaseCheck
}

// NewConfigCheck creates a new config check.
func NewConfigCheck() *ConfigCheck {
	return &ConfigCheck{
		BaseCheck: BaseCheck{
			CheckName:        "config",
			CheckDescription: "Check config.toml parses and validates",
			CheckCategory:    CategoryCore,
		},
	}
}

// Run loads the config file and reports parse or validation failures.
func (c *ConfigCheck) Run(ctx *CheckContext) *CheckResult {
	path := filepath.Join(ctx.StateDir, constants.ConfigFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No config.toml; defaults apply",
		}
	}

	if _, err := config.Load(path); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "config.toml is invalid",
			Details: []string{err.Error()},
			FixHint: "Edit " + path + " by hand",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "config.toml is valid",
	}
}
