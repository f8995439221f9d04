package doctor

import (
	"context"
	"fmt"
	"time"
)

// RetentionCheck finds completed dispatch records past the retention
// window.
type RetentionCheck struct {
	FixableCheck
}

// NewRetentionCheck creates a new retention check.
func NewRetentionCheck() *RetentionCheck {
	return &RetentionCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "retention",
				CheckDescription: "Check completed records against the retention window",
				CheckCategory:    CategoryCleanup,
			},
		},
	}
}

// Run counts over-retention completed records.
func (c *RetentionCheck) Run(ctx *CheckContext) *CheckResult {
	expired, err := c.countExpired(ctx)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Failed to read dispatch store",
			Details: []string{err.Error()},
		}
	}
	if expired == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No completed records past retention",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d completed record(s) past retention", expired),
		FixHint: "Run 'fm doctor --fix' or 'fm prune'",
	}
}

// Fix prunes the expired records.
func (c *RetentionCheck) Fix(ctx *CheckContext) error {
	_, err := ctx.Store.PruneCompleted(context.Background(), ctx.Config.Retention.Duration)
	return err
}

func (c *RetentionCheck) countExpired(ctx *CheckContext) (int, error) {
	ds, err := ctx.Store.Read()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-ctx.Config.Retention.Duration)
	n := 0
	for _, rec := range ds.Dispatches.Completed {
		ts := rec.DispatchedAt
		if rec.CompletedAt != nil {
			ts = *rec.CompletedAt
		}
		if ts.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
