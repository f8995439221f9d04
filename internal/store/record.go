// Package store persists dispatch records and project dispatch state as
// lock-guarded JSON files with atomic replacement.
package store

import "time"

// DispatchStatus is the fine-grained pipeline state of one dispatch.
type DispatchStatus string

const (
	// StatusDispatched means the item was admitted but work has not started.
	StatusDispatched DispatchStatus = "dispatched"
	// StatusWorking means a work attempt is in flight.
	StatusWorking DispatchStatus = "working"
	// StatusAuditing means the attempt finished and is being verified.
	StatusAuditing DispatchStatus = "auditing"
	// StatusDone means the work passed verification.
	StatusDone DispatchStatus = "done"
	// StatusRework means verification failed and another attempt follows.
	StatusRework DispatchStatus = "rework"
	// StatusStuck means the attempt bound was exhausted without passing.
	StatusStuck DispatchStatus = "stuck"
	// StatusFailed means an unrecoverable error outside the work/audit
	// cycle; never retried automatically.
	StatusFailed DispatchStatus = "failed"
)

// Terminal reports whether s ends the pipeline.
func (s DispatchStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusStuck, StatusFailed:
		return true
	}
	return false
}

// DispatchRecord tracks one in-flight or historical item execution.
type DispatchRecord struct {
	ID string `json:"id"`
	// RunID uniquely identifies this dispatch across retriggers of the
	// same identifier.
	RunID        string         `json:"run_id,omitempty"`
	IssueID      string         `json:"issue_id,omitempty"`
	WorkspaceRef string         `json:"workspace_ref,omitempty"`
	Model        string         `json:"model,omitempty"`
	Status       DispatchStatus `json:"status"`
	Attempt      int            `json:"attempt"`
	DispatchedAt time.Time      `json:"dispatched_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	SessionRef   string         `json:"session_ref,omitempty"`
	// LastVerdict summarizes the most recent verification outcome, kept
	// for operator escalation on stuck/failed records.
	LastVerdict string `json:"last_verdict,omitempty"`
}

// Dispatches splits records into the active and completed namespaces.
// An identifier appears in at most one of the two at a time.
type Dispatches struct {
	Active    map[string]*DispatchRecord `json:"active"`
	Completed map[string]*DispatchRecord `json:"completed"`
}

// DispatchStore is the persisted root of dispatch state.
type DispatchStore struct {
	Dispatches Dispatches `json:"dispatches"`
	// SessionMap is the reverse lookup from session ref to identifier.
	SessionMap map[string]string `json:"sessionMap"`
	// ProcessedEvents records handled trigger-event keys across restarts.
	ProcessedEvents []string `json:"processedEvents"`
}

// newDispatchStore returns an empty, fully allocated store.
func newDispatchStore() *DispatchStore {
	return &DispatchStore{
		Dispatches: Dispatches{
			Active:    make(map[string]*DispatchRecord),
			Completed: make(map[string]*DispatchRecord),
		},
		SessionMap:      make(map[string]string),
		ProcessedEvents: []string{},
	}
}

// normalize allocates any nil maps after unmarshaling an older file.
func (s *DispatchStore) normalize() {
	if s.Dispatches.Active == nil {
		s.Dispatches.Active = make(map[string]*DispatchRecord)
	}
	if s.Dispatches.Completed == nil {
		s.Dispatches.Completed = make(map[string]*DispatchRecord)
	}
	if s.SessionMap == nil {
		s.SessionMap = make(map[string]string)
	}
	if s.ProcessedEvents == nil {
		s.ProcessedEvents = []string{}
	}
}

// HasProcessedEvent reports whether key was already handled.
func (s *DispatchStore) HasProcessedEvent(key string) bool {
	for _, k := range s.ProcessedEvents {
		if k == key {
			return true
		}
	}
	return false
}
