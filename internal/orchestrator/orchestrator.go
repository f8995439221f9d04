// Package orchestrator runs the outer per-project dispatch loop: it
// builds the dependency graph once, then repeatedly admits ready items
// up to the concurrency cap, reacting to pipeline completion and stuck
// signals until the project is completed or stuck.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"foreman/internal/config"
	"foreman/internal/events"
	"foreman/internal/graph"
	"foreman/internal/guard"
	"foreman/internal/notify"
	"foreman/internal/pipeline"
	"foreman/internal/runner"
	"foreman/internal/store"
	"foreman/internal/task"
	"foreman/internal/tracker"
	"foreman/internal/workspace"
)

// ErrProjectActive means a project dispatch is already in flight.
var ErrProjectActive = errors.New("project dispatch already in progress")

// Orchestrator coordinates dispatch for any number of independent
// projects. Bookkeeping (readiness recomputation, graph mutation) is
// serialized through one mutex, so concurrent pipeline callbacks never
// race on project state; durable truth is re-read from the store on
// every decision.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	tracker  tracker.Client
	guard    *guard.Guard
	notifyFn notify.Func
	logger   func(format string, args ...interface{})

	sup  *task.Supervisor
	pipe *pipeline.Pipeline

	mu sync.Mutex
	// itemProject maps in-flight item identifiers to their project.
	itemProject map[string]string
}

// Options configure an Orchestrator.
type Options struct {
	Config      *config.Config
	Store       *store.Store
	Tracker     tracker.Client
	Guard       *guard.Guard
	Executor    runner.WorkExecutor
	Provisioner workspace.Provisioner
	Notify      notify.Func
	Logger      func(format string, args ...interface{})
}

// New creates an Orchestrator and its inner pipeline.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	nf := opts.Notify
	if nf == nil {
		nf = notify.Nop
	}

	o := &Orchestrator{
		cfg:         opts.Config,
		store:       opts.Store,
		tracker:     opts.Tracker,
		guard:       opts.Guard,
		notifyFn:    nf,
		logger:      logger,
		itemProject: make(map[string]string),
	}
	o.sup = task.New(logger, func(name string, err error) {
		// A pipeline goroutine only errors on store I/O failures (its
		// execution outcomes terminalize internally). Surface loudly.
		logger("orchestrator: pipeline task %s failed: %v", name, err)
	})
	o.pipe = pipeline.New(pipeline.Options{
		Store:       opts.Store,
		Provisioner: opts.Provisioner,
		Executor:    opts.Executor,
		Callbacks: pipeline.Callbacks{
			OnCompleted: o.OnItemCompleted,
			OnStuck:     o.OnItemStuck,
		},
		Notify:            nf,
		MaxAttempts:       opts.Config.MaxAttempts,
		InactivityTimeout: opts.Config.InactivityTimeout.Duration,
		Model:             opts.Config.Model,
		Logger:            logger,
	})
	return o
}

// HandleTrigger processes an external trigger event. Delivery is
// at-least-once: the dedup cache absorbs short-window duplicates and the
// persisted processed-event set absorbs redeliveries across restarts.
func (o *Orchestrator) HandleTrigger(ctx context.Context, eventKey, projectID string) error {
	if eventKey != "" {
		if o.guard.CheckAndMark(eventKey) {
			o.logger("orchestrator: duplicate trigger %s suppressed", eventKey)
			return nil
		}
		ds, err := o.store.Read()
		if err != nil {
			o.guard.Forget(eventKey)
			return err
		}
		if ds.HasProcessedEvent(eventKey) {
			o.logger("orchestrator: trigger %s already processed", eventKey)
			return nil
		}
	}

	// The key is persisted only once the project start succeeds: a
	// transient failure here must not burn the key, or a redelivery of
	// the same trigger would be suppressed with no work ever dispatched.
	if err := o.StartProject(ctx, projectID); err != nil {
		if eventKey != "" {
			o.guard.Forget(eventKey)
		}
		return err
	}
	if eventKey != "" {
		return o.store.MarkEventProcessed(ctx, eventKey)
	}
	return nil
}

// StartProject fetches the project's item set once, builds the
// dependency graph, persists the initial dispatching state, and admits
// the first wave of ready items. Store I/O errors propagate: a silently
// failed persistence write would desynchronize memory and disk.
func (o *Orchestrator) StartProject(ctx context.Context, projectID string) error {
	if existing, err := o.store.ReadProject(projectID); err == nil &&
		existing.Status == graph.ProjectDispatching {
		return fmt.Errorf("%w: %s", ErrProjectActive, projectID)
	}

	items, err := o.tracker.FetchItems(ctx, projectID)
	if err != nil {
		return fmt.Errorf("fetching items for %s: %w", projectID, err)
	}

	state := graph.Build(projectID, projectID, "", items, graph.BuildOptions{
		SkipLabel:     o.cfg.SkipLabel,
		MaxConcurrent: o.cfg.MaxConcurrent,
	})

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.WriteProject(ctx, state); err != nil {
		return err
	}
	o.logger("orchestrator: project %s dispatching %d items (%d skipped)",
		projectID, len(state.Issues), skippedCount(state))

	return o.dispatchReadyLocked(ctx, state)
}

// OnItemCompleted is the pipeline's completion callback. It marks the
// item done, persists, and either finalizes the project or dispatches
// the next wave. A no-op once the project has left dispatching.
func (o *Orchestrator) OnItemCompleted(ctx context.Context, itemID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.onItemTerminalLocked(ctx, itemID, graph.StatusDone)
}

// OnItemStuck is the pipeline's stuck/failed callback. It marks the item
// stuck, persists, and finalizes the project as stuck only when no other
// branch can make progress.
func (o *Orchestrator) OnItemStuck(ctx context.Context, itemID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.onItemTerminalLocked(ctx, itemID, graph.StatusStuck)
}

// Wait blocks until all in-flight pipelines have finished.
func (o *Orchestrator) Wait() {
	o.sup.Wait()
}

// onItemTerminalLocked applies one terminal item transition. Requires
// o.mu held.
func (o *Orchestrator) onItemTerminalLocked(ctx context.Context, itemID string, status graph.Status) error {
	projectID, ok := o.itemProject[itemID]
	if ok {
		delete(o.itemProject, itemID)
	} else {
		projectID = o.findProject(itemID)
		if projectID == "" {
			o.logger("orchestrator: callback for unknown item %s ignored", itemID)
			return nil
		}
	}

	state, err := o.store.ReadProject(projectID)
	if err != nil {
		return err
	}
	if state.Status != graph.ProjectDispatching {
		// Idempotent against duplicate callback delivery.
		return nil
	}
	item := state.Item(itemID)
	if item == nil || item.Status != graph.StatusDispatched {
		return nil
	}

	item.Status = status
	if status == graph.StatusDone {
		now := time.Now()
		item.CompletedAt = &now
	}
	// Persist before recomputing readiness: a later readiness query must
	// never observe a partially applied completion.
	if err := o.store.WriteProject(ctx, state); err != nil {
		return err
	}

	// Tracker writes are best-effort: the persisted graph state is the
	// source of truth.
	switch status {
	case graph.StatusDone:
		if err := o.tracker.UpdateStatus(ctx, item.IssueID, "closed"); err != nil {
			o.logger("orchestrator: closing %s in tracker: %v", item.IssueID, err)
		}
	case graph.StatusStuck:
		body := fmt.Sprintf("foreman: %s is stuck after automated attempts; manual intervention required", itemID)
		if err := o.tracker.Comment(ctx, item.IssueID, body); err != nil {
			o.logger("orchestrator: commenting on %s: %v", item.IssueID, err)
		}
	}

	settled, err := o.finalizeIfSettledLocked(ctx, state)
	if err != nil {
		return err
	}
	if settled {
		return nil
	}

	o.notifyFn(events.TypeProjectProgress, o.projectPayload(state))
	return o.dispatchReadyLocked(ctx, state)
}

// finalizeIfSettledLocked marks the project completed or stuck when no
// further dispatch can happen. A done transition can also be the one
// that reveals stuckness, when the last in-flight sibling finishes and
// only stuck-blocked pending items remain. Returns true when the
// project is no longer dispatching. Requires o.mu held.
func (o *Orchestrator) finalizeIfSettledLocked(ctx context.Context, state *graph.ProjectState) (bool, error) {
	if state.Status != graph.ProjectDispatching {
		return true, nil
	}

	if graph.Complete(state) {
		state.Status = graph.ProjectCompleted
		if err := o.store.WriteProject(ctx, state); err != nil {
			return false, err
		}
		o.logger("orchestrator: project %s completed", state.ProjectID)
		o.notifyFn(events.TypeProjectComplete, o.projectPayload(state))
		return true, nil
	}

	if graph.Stuck(state) {
		state.Status = graph.ProjectStuck
		if err := o.store.WriteProject(ctx, state); err != nil {
			return false, err
		}
		o.logger("orchestrator: project %s stuck", state.ProjectID)
		o.notifyFn(events.TypeProjectStuck, o.projectPayload(state))
		return true, nil
	}

	return false, nil
}

// dispatchReadyLocked admits ready items up to the concurrency cap, in
// listing order, and launches one pipeline per admission. Requires o.mu
// held and state freshly persisted.
func (o *Orchestrator) dispatchReadyLocked(ctx context.Context, state *graph.ProjectState) error {
	if state.Status != graph.ProjectDispatching {
		return nil
	}

	ready := graph.Ready(state)
	slots := state.MaxConcurrent - graph.ActiveCount(state)

	var admitted []*graph.WorkItem
	for _, item := range ready {
		if slots <= 0 {
			break
		}
		if err := o.guard.Admit(ctx, item.ID); err != nil {
			o.logger("orchestrator: %s not admitted: %v", item.ID, err)
			continue
		}
		rec := &store.DispatchRecord{
			ID:      item.ID,
			RunID:   uuid.NewString(),
			IssueID: item.IssueID,
			Model:   o.cfg.Model,
		}
		if err := o.store.RegisterDispatch(ctx, rec); err != nil {
			o.guard.Release(item.ID)
			if errors.Is(err, store.ErrDispatchExists) {
				o.logger("orchestrator: %s already dispatched elsewhere", item.ID)
				continue
			}
			return err
		}
		item.Status = graph.StatusDispatched
		o.itemProject[item.ID] = state.ProjectID
		admitted = append(admitted, item)
		slots--
	}

	if len(admitted) == 0 {
		// A graph with nothing to dispatch (empty, all skipped, or only
		// unreachable pending items) must still settle; no callback will
		// ever arrive to do it.
		_, err := o.finalizeIfSettledLocked(ctx, state)
		return err
	}
	if err := o.store.WriteProject(ctx, state); err != nil {
		return err
	}

	for _, item := range admitted {
		item := item
		o.notifyFn(events.TypeDispatch, map[string]interface{}{
			"project": state.ProjectID,
			"item":    item.ID,
		})
		// Pipelines outlive the triggering call; detach from its
		// cancellation but keep its values.
		runCtx := context.WithoutCancel(ctx)
		o.sup.Go(item.ID, func() error {
			defer o.guard.Release(item.ID)
			return o.pipe.Run(runCtx, item)
		})
	}
	return nil
}

// findProject scans persisted projects for one holding itemID. Fallback
// for callbacks arriving without an in-memory mapping.
func (o *Orchestrator) findProject(itemID string) string {
	ids, err := o.store.ListProjects()
	if err != nil {
		return ""
	}
	for _, projectID := range ids {
		state, err := o.store.ReadProject(projectID)
		if err != nil {
			continue
		}
		if state.Status == graph.ProjectDispatching && state.Item(itemID) != nil {
			return projectID
		}
	}
	return ""
}

// projectPayload summarizes a project for notifications.
func (o *Orchestrator) projectPayload(state *graph.ProjectState) map[string]interface{} {
	counts := make(map[graph.Status]int)
	for _, item := range state.Issues {
		counts[item.Status]++
	}
	return map[string]interface{}{
		"project": state.ProjectID,
		"status":  string(state.Status),
		"done":    counts[graph.StatusDone],
		"stuck":   counts[graph.StatusStuck],
		"pending": counts[graph.StatusPending],
		"active":  counts[graph.StatusDispatched],
		"skipped": counts[graph.StatusSkipped],
	}
}

func skippedCount(state *graph.ProjectState) int {
	n := 0
	for _, item := range state.Issues {
		if item.Status == graph.StatusSkipped {
			n++
		}
	}
	return n
}
