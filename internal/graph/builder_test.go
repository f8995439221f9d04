package graph

import (
	"testing"
)

func buildOpts() BuildOptions {
	return BuildOptions{SkipLabel: "epic", MaxConcurrent: 3}
}

func TestBuildBlocksEdges(t *testing.T) {
	items := []RawItem{
		{ID: "a", Relations: []Relation{{Type: RelationBlocks, RelatedID: "b"}}},
		{ID: "b"},
	}
	state := Build("p1", "proj", "a", items, buildOpts())

	a, b := state.Item("a"), state.Item("b")
	if _, ok := a.Unblocks["b"]; !ok {
		t.Error("a should unblock b")
	}
	if _, ok := b.DependsOn["a"]; !ok {
		t.Error("b should depend on a")
	}
	if len(a.DependsOn) != 0 || len(b.Unblocks) != 0 {
		t.Error("reverse edges should not exist")
	}
}

func TestBuildBlockedByEquivalent(t *testing.T) {
	// "b blocked_by a" must produce the same graph as "a blocks b".
	items := []RawItem{
		{ID: "a"},
		{ID: "b", Relations: []Relation{{Type: RelationBlockedBy, RelatedID: "a"}}},
	}
	state := Build("p1", "proj", "a", items, buildOpts())

	if _, ok := state.Item("b").DependsOn["a"]; !ok {
		t.Error("b should depend on a")
	}
	if _, ok := state.Item("a").Unblocks["b"]; !ok {
		t.Error("a should unblock b")
	}
}

func TestBuildDropsUnknownEndpoints(t *testing.T) {
	items := []RawItem{
		{ID: "a", Relations: []Relation{
			{Type: RelationBlocks, RelatedID: "ghost"},
			{Type: RelationBlockedBy, RelatedID: "phantom"},
		}},
	}
	state := Build("p1", "proj", "a", items, buildOpts())

	a := state.Item("a")
	if len(a.DependsOn) != 0 || len(a.Unblocks) != 0 {
		t.Errorf("edges to unknown identifiers must be dropped, got deps=%v unblocks=%v",
			a.DependsOn, a.Unblocks)
	}
}

func TestBuildEpicExclusion(t *testing.T) {
	// An epic-labeled item is excised; its dependents lose the
	// dependency entirely rather than inheriting its predecessors.
	items := []RawItem{
		{ID: "root", Relations: []Relation{{Type: RelationBlocks, RelatedID: "epic1"}}},
		{ID: "epic1", Labels: []string{"Epic"}, Relations: []Relation{
			{Type: RelationBlocks, RelatedID: "leaf"},
		}},
		{ID: "leaf", Relations: []Relation{{Type: RelationBlockedBy, RelatedID: "epic1"}}},
	}
	state := Build("p1", "proj", "root", items, buildOpts())

	if state.Item("epic1").Status != StatusSkipped {
		t.Fatalf("epic1 status = %s, want skipped", state.Item("epic1").Status)
	}
	if len(state.Item("epic1").DependsOn) != 0 || len(state.Item("epic1").Unblocks) != 0 {
		t.Error("skipped item must carry no edges")
	}
	if len(state.Item("leaf").DependsOn) != 0 {
		t.Errorf("leaf.DependsOn = %v, want empty (no bridging through skipped items)",
			state.Item("leaf").DependsOn)
	}
	if len(state.Item("root").Unblocks) != 0 {
		t.Errorf("root.Unblocks = %v, want empty", state.Item("root").Unblocks)
	}
}

func TestBuildSkipLabelCaseInsensitive(t *testing.T) {
	items := []RawItem{
		{ID: "a", Labels: []string{"EPIC: tracking"}},
		{ID: "b", Labels: []string{"feature"}},
	}
	state := Build("p1", "proj", "", items, buildOpts())

	if state.Item("a").Status != StatusSkipped {
		t.Error("mixed-case epic label should be skipped")
	}
	if state.Item("b").Status != StatusPending {
		t.Error("non-matching label should stay pending")
	}
}

func TestBuildDiamond(t *testing.T) {
	items := []RawItem{
		{ID: "a", Relations: []Relation{
			{Type: RelationBlocks, RelatedID: "b"},
			{Type: RelationBlocks, RelatedID: "c"},
		}},
		{ID: "b", Relations: []Relation{{Type: RelationBlocks, RelatedID: "d"}}},
		{ID: "c", Relations: []Relation{{Type: RelationBlocks, RelatedID: "d"}}},
		{ID: "d"},
	}
	state := Build("p1", "proj", "a", items, buildOpts())

	d := state.Item("d")
	if len(d.DependsOn) != 2 {
		t.Fatalf("d.DependsOn = %v, want {b, c}", d.DependsOn)
	}
	for _, dep := range []string{"b", "c"} {
		if _, ok := d.DependsOn[dep]; !ok {
			t.Errorf("d missing dependency on %s", dep)
		}
	}
}

func TestBuildNoSkippedOrForeignDependencies(t *testing.T) {
	// Property: no item's DependsOn contains a skipped or out-of-project
	// identifier, for any relation mix.
	items := []RawItem{
		{ID: "a", Labels: []string{"epic"}, Relations: []Relation{
			{Type: RelationBlocks, RelatedID: "b"},
		}},
		{ID: "b", Relations: []Relation{
			{Type: RelationBlockedBy, RelatedID: "a"},
			{Type: RelationBlockedBy, RelatedID: "outside"},
			{Type: RelationBlocks, RelatedID: "c"},
		}},
		{ID: "c"},
	}
	state := Build("p1", "proj", "", items, buildOpts())

	for id, item := range state.Issues {
		for depID := range item.DependsOn {
			dep := state.Issues[depID]
			if dep == nil {
				t.Errorf("%s depends on out-of-project %s", id, depID)
			} else if dep.Status == StatusSkipped {
				t.Errorf("%s depends on skipped %s", id, depID)
			}
		}
	}
}

func TestBuildPreservesListingOrder(t *testing.T) {
	items := []RawItem{{ID: "z"}, {ID: "m"}, {ID: "a"}}
	state := Build("p1", "proj", "", items, buildOpts())

	want := []string{"z", "m", "a"}
	for i, item := range state.InOrder() {
		if item.ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, item.ID, want[i])
		}
	}
}
