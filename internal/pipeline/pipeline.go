// Package pipeline drives one dispatched work item through the inner
// execution state machine:
//
//	dispatched -> working -> auditing -> done
//	                              |-> rework -> working (attempt+1, bounded)
//	                              |-> stuck   (attempt bound exhausted)
//
// with an orthogonal failed terminal reachable from any state on an
// unrecoverable error. The work step carries its own one-shot inactivity
// retry, which is distinct from the audit-driven rework loop: a single
// rework attempt may itself consume the inactivity retry.
//
// Pipeline-local errors never escape: every outcome is translated into a
// terminal dispatch record status, and exactly one orchestrator callback
// fires per terminal transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foreman/internal/graph"
	"foreman/internal/notify"
	"foreman/internal/runner"
	"foreman/internal/store"
	"foreman/internal/workspace"
)

// Callbacks connect pipeline terminals to the project orchestrator. The
// orchestrator stays ignorant of pipeline internals (rework attempts,
// inactivity retries); these two signatures are the entire coupling.
type Callbacks struct {
	OnCompleted func(ctx context.Context, itemID string) error
	OnStuck     func(ctx context.Context, itemID string) error
}

// Pipeline executes admitted items one at a time (one Pipeline value may
// run many items; each Run call is independent).
type Pipeline struct {
	store       *store.Store
	provisioner workspace.Provisioner
	executor    runner.WorkExecutor
	callbacks   Callbacks
	notify      notify.Func

	maxAttempts       int
	inactivityTimeout time.Duration
	model             string
	logger            func(format string, args ...interface{})
}

// Options configure a Pipeline.
type Options struct {
	Store             *store.Store
	Provisioner       workspace.Provisioner
	Executor          runner.WorkExecutor
	Callbacks         Callbacks
	Notify            notify.Func
	MaxAttempts       int
	InactivityTimeout time.Duration
	Model             string
	Logger            func(format string, args ...interface{})
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	nf := opts.Notify
	if nf == nil {
		nf = notify.Nop
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pipeline{
		store:             opts.Store,
		provisioner:       opts.Provisioner,
		executor:          opts.Executor,
		callbacks:         opts.Callbacks,
		notify:            nf,
		maxAttempts:       maxAttempts,
		inactivityTimeout: opts.InactivityTimeout,
		model:             opts.Model,
		logger:            logger,
	}
}

// Run drives item through the state machine. The dispatch record for
// item.ID must already be registered as active. Run returns an error
// only for store I/O failures; execution outcomes are absorbed into the
// terminal record status.
func (p *Pipeline) Run(ctx context.Context, item *graph.WorkItem) error {
	// Environment prep. A provisioning failure is unrecoverable: it is
	// outside the work/audit cycle and is never retried.
	ref, err := p.provisioner.Provision(ctx, item.ID)
	if err != nil {
		p.logger("pipeline %s: provisioning failed: %v", item.ID, err)
		return p.terminalize(ctx, item.ID, store.StatusFailed, err.Error())
	}
	if err := p.store.UpdateDispatchStatus(ctx, item.ID, store.StatusDispatched, func(r *store.DispatchRecord) {
		r.WorkspaceRef = ref
	}); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		if err := p.store.UpdateDispatchStatus(ctx, item.ID, store.StatusWorking, func(r *store.DispatchRecord) {
			r.Attempt = attempt
		}); err != nil {
			return err
		}

		report, workErr := p.runWork(ctx, item, ref, attempt)
		if workErr != nil {
			if errors.Is(workErr, runner.ErrUnrecoverable) || ctx.Err() != nil {
				p.logger("pipeline %s: unrecoverable: %v", item.ID, workErr)
				return p.terminalize(ctx, item.ID, store.StatusFailed, workErr.Error())
			}
			// Transient execution failure: counts as a failed attempt
			// and flows through the audit path.
			report = &runner.Report{Verdict: runner.Verdict{
				Passed:  false,
				Summary: workErr.Error(),
			}}
		}

		if err := p.store.UpdateDispatchStatus(ctx, item.ID, store.StatusAuditing, func(r *store.DispatchRecord) {
			if report.SessionRef != "" {
				r.SessionRef = report.SessionRef
			}
			r.LastVerdict = report.Verdict.Summary
		}); err != nil {
			return err
		}

		if report.Verdict.Passed {
			return p.terminalize(ctx, item.ID, store.StatusDone, report.Verdict.Summary)
		}

		if attempt >= p.maxAttempts {
			p.logger("pipeline %s: attempt bound (%d) exhausted", item.ID, p.maxAttempts)
			return p.terminalize(ctx, item.ID, store.StatusStuck, report.Verdict.Summary)
		}

		p.logger("pipeline %s: verification failed on attempt %d, reworking", item.ID, attempt)
		if err := p.store.UpdateDispatchStatus(ctx, item.ID, store.StatusRework, nil); err != nil {
			return err
		}
	}
}

// runWork performs a single work invocation under the inactivity
// watchdog, retrying exactly once on an inactivity abort before
// reporting the failure upward.
func (p *Pipeline) runWork(ctx context.Context, item *graph.WorkItem, ref string, attempt int) (*runner.Report, error) {
	var report *runner.Report
	for try := 0; try < 2; try++ {
		err := runWithWatchdog(ctx, p.inactivityTimeout, func(wctx context.Context, onActivity func()) error {
			var runErr error
			report, runErr = p.executor.RunAttempt(wctx, runner.AttemptRequest{
				Item:         item,
				WorkspaceRef: ref,
				Model:        p.model,
				Attempt:      attempt,
				OnActivity:   onActivity,
			})
			return runErr
		})
		if errors.Is(err, ErrInactive) {
			if try == 0 {
				p.logger("pipeline %s: aborted after inactivity, retrying invocation once", item.ID)
				continue
			}
			return nil, fmt.Errorf("attempt %d for %s: %w after retry", attempt, item.ID, ErrInactive)
		}
		if err != nil {
			return nil, err
		}
		return report, nil
	}
	panic("unreachable")
}

// terminalize records the terminal status and fires the matching
// orchestrator callback exactly once. done routes to the completion
// callback; stuck and failed route to the stuck callback.
func (p *Pipeline) terminalize(ctx context.Context, itemID string, status store.DispatchStatus, detail string) error {
	// The terminal write must land even when the parent context was
	// canceled mid-attempt.
	ctx = context.WithoutCancel(ctx)
	err := p.store.CompleteDispatch(ctx, itemID, status, func(r *store.DispatchRecord) {
		if detail != "" {
			r.LastVerdict = detail
		}
	})
	if err != nil {
		return fmt.Errorf("completing dispatch %s: %w", itemID, err)
	}

	if status == store.StatusDone {
		if p.callbacks.OnCompleted != nil {
			return p.callbacks.OnCompleted(ctx, itemID)
		}
		return nil
	}
	if p.callbacks.OnStuck != nil {
		return p.callbacks.OnStuck(ctx, itemID)
	}
	return nil
}
