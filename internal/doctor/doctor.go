// Package doctor provides health checks for the foreman state directory
// and its dispatch records, with optional auto-fix.
package doctor

import (
	"foreman/internal/config"
	"foreman/internal/store"
)

// CheckStatus is the outcome severity of a single check.
type CheckStatus int

const (
	StatusOK CheckStatus = iota
	StatusWarning
	StatusError
)

// String returns the display name for the status.
func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Check categories group related checks in report output.
type Category string

const (
	CategoryCore    Category = "core"
	CategoryState   Category = "state"
	CategoryCleanup Category = "cleanup"
)

// CheckContext carries the environment checks run against.
type CheckContext struct {
	StateDir string
	Config   *config.Config
	Store    *store.Store
}

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Details []string
	FixHint string
}

// Check is a single diagnosable condition.
type Check interface {
	Name() string
	Description() string
	Category() Category
	Run(ctx *CheckContext) *CheckResult

	// CanFix reports whether Fix can repair a failing result.
	CanFix() bool
	// Fix attempts the repair. Returns ErrCannotFix when unsupported.
	Fix(ctx *CheckContext) error
}

// BaseCheck supplies the metadata methods for a check. Checks without
// auto-fix embed it directly.
type BaseCheck struct {
	CheckName        string
	CheckDescription string
	CheckCategory    Category
}

func (c *BaseCheck) Name() string        { return c.CheckName }
func (c *BaseCheck) Description() string { return c.CheckDescription }
func (c *BaseCheck) Category() Category  { return c.CheckCategory }

func (c *BaseCheck) CanFix() bool { return false }

func (c *BaseCheck) Fix(ctx *CheckContext) error { return ErrCannotFix }

// FixableCheck marks a check as auto-fixable; the embedding check must
// provide its own Fix.
type FixableCheck struct {
	BaseCheck
}

func (c *FixableCheck) CanFix() bool { return true }

// Summary tallies check outcomes.
type Summary struct {
	OK       int
	Warnings int
	Errors   int
	Fixed    int
}

// Report is the outcome of a full doctor run.
type Report struct {
	Checks  []*CheckResult
	Summary Summary
}

// Doctor runs a registered set of checks.
type Doctor struct {
	checks []Check
}

// NewDoctor creates an empty Doctor.
func NewDoctor() *Doctor {
	return &Doctor{}
}

// RegisterAll adds checks in display order.
func (d *Doctor) RegisterAll(checks ...Check) {
	d.checks = append(d.checks, checks...)
}

// DefaultChecks returns the standard check set.
func DefaultChecks() []Check {
	return []Check{
		NewStateDirCheck(),
		NewConfigCheck(),
		NewStaleDispatchCheck(),
		NewLockCheck(),
		NewWorkspaceCheck(),
		NewRetentionCheck(),
	}
}

// Run executes every registered check and tallies the results.
func (d *Doctor) Run(ctx *CheckContext) *Report {
	report := &Report{}
	for _, check := range d.checks {
		result := check.Run(ctx)
		report.Checks = append(report.Checks, result)
		switch result.Status {
		case StatusOK:
			report.Summary.OK++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		}
	}
	return report
}

// Fix runs every check, attempts repair on fixable non-OK results, and
// re-runs the repaired checks for the final report.
func (d *Doctor) Fix(ctx *CheckContext) *Report {
	report := &Report{}
	for _, check := range d.checks {
		result := check.Run(ctx)
		if result.Status != StatusOK && check.CanFix() {
			if err := check.Fix(ctx); err == nil {
				report.Summary.Fixed++
				result = check.Run(ctx)
			} else {
				result.Details = append(result.Details, "fix failed: "+err.Error())
			}
		}
		report.Checks = append(report.Checks, result)
		switch result.Status {
		case StatusOK:
			report.Summary.OK++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		}
	}
	return report
}
