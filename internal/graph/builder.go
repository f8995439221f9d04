package graph

import (
	"strings"
	"time"
)

// RelationType describes a raw dependency edge direction.
type RelationType string

const (
	// RelationBlocks means the item blocks the related item.
	RelationBlocks RelationType = "blocks"
	// RelationBlockedBy means the item is blocked by the related item.
	RelationBlockedBy RelationType = "blocked_by"
)

// Relation is a raw edge from the issue tracker.
type Relation struct {
	Type      RelationType `json:"type"`
	RelatedID string       `json:"related_id"`
}

// RawItem is an unresolved item as fetched from the issue tracker.
type RawItem struct {
	ID        string     `json:"id"`
	IssueID   string     `json:"issue_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Relations []Relation `json:"relations,omitempty"`
}

// BuildOptions tune graph construction.
type BuildOptions struct {
	// SkipLabel excludes matching items (case-insensitive substring
	// against each label). Empty disables skipping.
	SkipLabel string
	// MaxConcurrent is recorded on the resulting project state.
	MaxConcurrent int
}

// Build turns a flat item list plus relation edges into a project
// dependency graph.
//
// Pass 1 marks any item with a skip-matching label as skipped. Pass 2
// materializes each relation as a depends-on/unblocks pair, but only when
// both endpoints are in the item set and neither is skipped; edges to
// unknown identifiers or touching a skipped item are silently dropped.
// Dependents of a skipped item lose that dependency entirely - they do
// not inherit the skipped item's own predecessors.
//
// The input is assumed cycle-free; Build does not validate acyclicity.
func Build(projectID, projectName, rootID string, items []RawItem, opts BuildOptions) *ProjectState {
	state := &ProjectState{
		ProjectID:     projectID,
		ProjectName:   projectName,
		RootID:        rootID,
		Status:        ProjectDispatching,
		StartedAt:     time.Now(),
		MaxConcurrent: opts.MaxConcurrent,
		Issues:        make(map[string]*WorkItem, len(items)),
		Order:         make([]string, 0, len(items)),
	}

	// Pass 1: create items, excising skip-labeled ones.
	for _, raw := range items {
		if raw.ID == "" || state.Issues[raw.ID] != nil {
			continue
		}
		item := &WorkItem{
			ID:        raw.ID,
			IssueID:   raw.IssueID,
			Title:     raw.Title,
			DependsOn: make(map[string]struct{}),
			Unblocks:  make(map[string]struct{}),
			Status:    StatusPending,
		}
		if matchesSkipLabel(raw.Labels, opts.SkipLabel) {
			item.Status = StatusSkipped
		}
		state.Issues[raw.ID] = item
		state.Order = append(state.Order, raw.ID)
	}

	// Pass 2: resolve edges between live endpoints.
	for _, raw := range items {
		from := state.Issues[raw.ID]
		if from == nil || from.Status == StatusSkipped {
			continue
		}
		for _, rel := range raw.Relations {
			to := state.Issues[rel.RelatedID]
			if to == nil || to.Status == StatusSkipped || to == from {
				continue
			}
			switch rel.Type {
			case RelationBlocks:
				// from blocks to: to waits for from.
				from.Unblocks[to.ID] = struct{}{}
				to.DependsOn[from.ID] = struct{}{}
			case RelationBlockedBy:
				// from waits for to.
				from.DependsOn[to.ID] = struct{}{}
				to.Unblocks[from.ID] = struct{}{}
			}
		}
	}

	return state
}

// matchesSkipLabel reports whether any label contains the skip pattern,
// case-insensitively.
func matchesSkipLabel(labels []string, pattern string) bool {
	if pattern == "" {
		return false
	}
	pattern = strings.ToLower(pattern)
	for _, label := range labels {
		if strings.Contains(strings.ToLower(label), pattern) {
			return true
		}
	}
	return false
}
