// Package graph builds per-project dependency graphs over work items and
// answers readiness queries against them.
package graph

import "time"

// Status is the coarse graph-level state of a work item.
type Status string

const (
	// StatusPending means the item is waiting on dependencies or capacity.
	StatusPending Status = "pending"
	// StatusDispatched means the item has been admitted into the
	// execution pipeline.
	StatusDispatched Status = "dispatched"
	// StatusDone means the item completed and passed verification.
	StatusDone Status = "done"
	// StatusStuck means the item exhausted its rework attempts.
	StatusStuck Status = "stuck"
	// StatusSkipped means the item was excised from the graph by label.
	StatusSkipped Status = "skipped"
)

// ProjectStatus is the state of a whole project dispatch.
type ProjectStatus string

const (
	// ProjectDispatching means items are still being scheduled.
	ProjectDispatching ProjectStatus = "dispatching"
	// ProjectCompleted means every item reached a terminal state and at
	// least the reachable ones are done.
	ProjectCompleted ProjectStatus = "completed"
	// ProjectStuck means no further progress is possible.
	ProjectStuck ProjectStatus = "stuck"
)

// WorkItem is a dependency-tracked unit of work.
type WorkItem struct {
	// ID is the stable external identifier (issue tracker key).
	ID string `json:"id"`
	// IssueID is the tracker-internal id.
	IssueID string `json:"issue_id,omitempty"`
	// Title is carried for reporting only.
	Title string `json:"title,omitempty"`
	// DependsOn holds identifiers this item waits for.
	DependsOn map[string]struct{} `json:"depends_on,omitempty"`
	// Unblocks holds identifiers waiting for this item.
	Unblocks map[string]struct{} `json:"unblocks,omitempty"`

	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProjectState is the per-project dispatch state: the dependency graph
// plus scheduling bookkeeping. One per project; persisted after every
// status mutation.
type ProjectState struct {
	ProjectID   string        `json:"project_id"`
	ProjectName string        `json:"project_name,omitempty"`
	RootID      string        `json:"root_id,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`

	// MaxConcurrent caps simultaneously dispatched items.
	MaxConcurrent int `json:"max_concurrent"`

	// Issues maps identifier to item. Every edge in DependsOn/Unblocks
	// references another key of this map; skipped items carry no edges.
	Issues map[string]*WorkItem `json:"issues"`

	// Order preserves the tracker's listing order so dispatch order
	// never depends on map iteration.
	Order []string `json:"order"`
}

// Item returns the work item for id, or nil.
func (p *ProjectState) Item(id string) *WorkItem {
	return p.Issues[id]
}

// InOrder returns the items in original listing order.
func (p *ProjectState) InOrder() []*WorkItem {
	items := make([]*WorkItem, 0, len(p.Order))
	for _, id := range p.Order {
		if item := p.Issues[id]; item != nil {
			items = append(items, item)
		}
	}
	return items
}
