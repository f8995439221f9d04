package graph

// Ready returns, in listing order, the pending items whose entire
// depends-on set has status done. Skipped items never appear as
// dependencies, so done is the only satisfying state.
func Ready(state *ProjectState) []*WorkItem {
	var ready []*WorkItem
	for _, item := range state.InOrder() {
		if item.Status != StatusPending {
			continue
		}
		if depsSatisfied(state, item) {
			ready = append(ready, item)
		}
	}
	return ready
}

// ActiveCount returns the number of dispatched items. This is the coarse
// graph-level view; the finer pipeline sub-states live on the dispatch
// record and are not visible here.
func ActiveCount(state *ProjectState) int {
	n := 0
	for _, item := range state.Issues {
		if item.Status == StatusDispatched {
			n++
		}
	}
	return n
}

// Complete reports whether every item is in a terminal state
// (done, stuck, or skipped). An empty item map is complete.
func Complete(state *ProjectState) bool {
	for _, item := range state.Issues {
		switch item.Status {
		case StatusDone, StatusStuck, StatusSkipped:
		default:
			return false
		}
	}
	return true
}

// Stuck reports whether the project can make no further progress: no
// items are dispatched, at least one item is pending, and every pending
// item is blocked through a stuck dependency. A single pending item with
// no stuck ancestor keeps the project unstuck even if siblings are
// individually stuck.
func Stuck(state *ProjectState) bool {
	pending := 0
	for _, item := range state.Issues {
		switch item.Status {
		case StatusDispatched:
			return false
		case StatusPending:
			pending++
			if !blockedByStuck(state, item) {
				return false
			}
		}
	}
	return pending > 0
}

// depsSatisfied reports whether every dependency of item is done.
func depsSatisfied(state *ProjectState, item *WorkItem) bool {
	for depID := range item.DependsOn {
		dep := state.Issues[depID]
		if dep == nil || dep.Status != StatusDone {
			return false
		}
	}
	return true
}

// blockedByStuck reports whether item is unreachable: its dependency set
// is non-empty and contains, transitively, at least one stuck item.
func blockedByStuck(state *ProjectState, item *WorkItem) bool {
	if len(item.DependsOn) == 0 {
		return false
	}
	seen := make(map[string]struct{})
	var walk func(*WorkItem) bool
	walk = func(it *WorkItem) bool {
		for depID := range it.DependsOn {
			if _, ok := seen[depID]; ok {
				continue
			}
			seen[depID] = struct{}{}
			dep := state.Issues[depID]
			if dep == nil {
				continue
			}
			if dep.Status == StatusStuck {
				return true
			}
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(item)
}
