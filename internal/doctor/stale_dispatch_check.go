package doctor

import (
	"context"
	"fmt"
	"time"

	"foreman/internal/store"
)

// StaleDispatchCheck finds active dispatch records older than the
// staleness threshold, left behind by crashed dispatcher processes.
type StaleDispatchCheck struct {
	FixableCheck
}

// NewStaleDispatchCheck creates a new stale dispatch check.
func NewStaleDispatchCheck() *StaleDispatchCheck {
	return &StaleDispatchCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "stale-dispatches",
				CheckDescription: "Check for abandoned active dispatch records",
				CheckCategory:    CategoryState,
			},
		},
	}
}

func (c *StaleDispatchCheck) staleness(ctx *CheckContext) time.Duration {
	return ctx.Config.DispatchStaleness.Duration
}

// Run lists stale active records.
func (c *StaleDispatchCheck) Run(ctx *CheckContext) *CheckResult {
	stale, err := c.list(ctx)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Failed to read dispatch store",
			Details: []string{err.Error()},
		}
	}
	if len(stale) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No stale active dispatches",
		}
	}

	details := make([]string, 0, len(stale))
	for _, rec := range stale {
		age := time.Since(rec.DispatchedAt).Round(time.Minute)
		details = append(details, fmt.Sprintf("%s (%s, age %s)", rec.ID, rec.Status, age))
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d stale active dispatch(es)", len(stale)),
		Details: details,
		FixHint: "Run 'fm doctor --fix' to reclaim them",
	}
}

// Fix removes the stale records so the items become dispatchable again.
func (c *StaleDispatchCheck) Fix(ctx *CheckContext) error {
	stale, err := c.list(ctx)
	if err != nil {
		return err
	}
	for _, rec := range stale {
		if err := ctx.Store.RemoveActiveDispatch(context.Background(), rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *StaleDispatchCheck) list(ctx *CheckContext) ([]*store.DispatchRecord, error) {
	return ctx.Store.ListStaleDispatches(c.staleness(ctx))
}
