// Package tracker defines the issue tracker client consumed by the
// dispatch core, plus the bd-CLI-backed implementation.
package tracker

import (
	"context"

	"foreman/internal/graph"
)

// Client fetches work items and posts updates back to the tracker. The
// core only calls these methods; tracker-specific semantics live behind
// the implementation.
type Client interface {
	// FetchItems returns the project's items with labels and relation
	// edges, in the tracker's listing order.
	FetchItems(ctx context.Context, projectID string) ([]graph.RawItem, error)

	// UpdateStatus sets the tracker-side status of an issue.
	UpdateStatus(ctx context.Context, issueID, status string) error

	// Comment posts a progress comment on an issue.
	Comment(ctx context.Context, issueID, body string) error
}
