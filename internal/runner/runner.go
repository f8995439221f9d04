// Package runner defines the work executor consumed by the execution
// pipeline, plus the claude-CLI-backed implementation.
package runner

import (
	"context"
	"errors"

	"foreman/internal/graph"
)

// ErrUnrecoverable wraps executor failures that must not be retried
// (missing binary, corrupt workspace). The pipeline routes these to the
// failed terminal state instead of the rework loop.
var ErrUnrecoverable = errors.New("unrecoverable execution error")

// Verdict is the verification outcome of one work attempt.
type Verdict struct {
	Passed  bool   `json:"passed"`
	Summary string `json:"summary,omitempty"`
}

// Report is the result of one work attempt.
type Report struct {
	// SessionRef identifies the underlying agent session, if any.
	SessionRef string
	Verdict    Verdict
}

// AttemptRequest describes one work attempt.
type AttemptRequest struct {
	Item         *graph.WorkItem
	WorkspaceRef string
	Model        string
	Attempt      int
	// OnActivity is invoked whenever the invocation produces observable
	// progress; the pipeline's inactivity watchdog feeds on it. May be
	// nil.
	OnActivity func()
}

// WorkExecutor performs one attempt of work for an item. The core treats
// it as an opaque, cancelable, time-boxed operation: a context cancel
// must abort the attempt.
type WorkExecutor interface {
	RunAttempt(ctx context.Context, req AttemptRequest) (*Report, error)
}
