package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), 30*time.Second)
}

func TestReadEmptyStore(t *testing.T) {
	s := newTestStore(t)
	ds, err := s.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(ds.Dispatches.Active) != 0 || len(ds.Dispatches.Completed) != 0 {
		t.Fatal("Expected empty store")
	}
}

func TestRegisterDispatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &DispatchRecord{ID: "fm-1", IssueID: "42", SessionRef: "sess-1"}
	if err := s.RegisterDispatch(ctx, rec); err != nil {
		t.Fatalf("RegisterDispatch error: %v", err)
	}

	ds, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	got := ds.Dispatches.Active["fm-1"]
	if got == nil {
		t.Fatal("Record not persisted")
	}
	if got.Status != StatusDispatched {
		t.Errorf("Status = %s, want dispatched", got.Status)
	}
	if got.DispatchedAt.IsZero() {
		t.Error("DispatchedAt not stamped")
	}
	if ds.SessionMap["sess-1"] != "fm-1" {
		t.Errorf("SessionMap = %v, want sess-1 -> fm-1", ds.SessionMap)
	}

	// Duplicate registration is rejected
	err = s.RegisterDispatch(ctx, &DispatchRecord{ID: "fm-1"})
	if !errors.Is(err, ErrDispatchExists) {
		t.Fatalf("Expected ErrDispatchExists, got %v", err)
	}
}

func TestUpdateAndCompleteDispatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RegisterDispatch(ctx, &DispatchRecord{ID: "fm-1"}); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateDispatchStatus(ctx, "fm-1", StatusWorking, func(r *DispatchRecord) {
		r.Attempt = 1
		r.SessionRef = "sess-9"
	})
	if err != nil {
		t.Fatalf("UpdateDispatchStatus error: %v", err)
	}

	ds, _ := s.Read()
	if ds.Dispatches.Active["fm-1"].Status != StatusWorking {
		t.Error("Status not updated")
	}
	if ds.SessionMap["sess-9"] != "fm-1" {
		t.Error("SessionRef not indexed on update")
	}

	if err := s.CompleteDispatch(ctx, "fm-1", StatusDone, nil); err != nil {
		t.Fatalf("CompleteDispatch error: %v", err)
	}

	ds, _ = s.Read()
	if _, ok := ds.Dispatches.Active["fm-1"]; ok {
		t.Error("Identifier still in active after completion")
	}
	done := ds.Dispatches.Completed["fm-1"]
	if done == nil {
		t.Fatal("Record not moved to completed")
	}
	if done.Status != StatusDone || done.CompletedAt == nil {
		t.Errorf("Completed record = %+v", done)
	}
}

func TestCompleteRejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RegisterDispatch(ctx, &DispatchRecord{ID: "fm-1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteDispatch(ctx, "fm-1", StatusWorking, nil); err == nil {
		t.Fatal("Expected error for non-terminal completion status")
	}
}

func TestUpdateMissingDispatch(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateDispatchStatus(context.Background(), "ghost", StatusWorking, nil)
	if !errors.Is(err, ErrDispatchNotFound) {
		t.Fatalf("Expected ErrDispatchNotFound, got %v", err)
	}
}

func TestRemoveActiveDispatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RegisterDispatch(ctx, &DispatchRecord{ID: "fm-1", SessionRef: "sess-1"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveActiveDispatch(ctx, "fm-1"); err != nil {
		t.Fatalf("RemoveActiveDispatch error: %v", err)
	}
	ds, _ := s.Read()
	if _, ok := ds.Dispatches.Active["fm-1"]; ok {
		t.Error("Record not removed")
	}
	if _, ok := ds.SessionMap["sess-1"]; ok {
		t.Error("SessionMap entry not removed")
	}

	// Removing again is a no-op
	if err := s.RemoveActiveDispatch(ctx, "fm-1"); err != nil {
		t.Fatalf("Second remove error: %v", err)
	}
}

func TestMutateErrorLeavesStoreUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RegisterDispatch(ctx, &DispatchRecord{ID: "fm-1"}); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("boom")
	err := s.Mutate(ctx, func(ds *DispatchStore) error {
		delete(ds.Dispatches.Active, "fm-1")
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected mutation error, got %v", err)
	}

	ds, _ := s.Read()
	if _, ok := ds.Dispatches.Active["fm-1"]; !ok {
		t.Error("Failed mutation must not persist")
	}
}

func TestProcessedEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.MarkEventProcessed(ctx, "evt-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkEventProcessed(ctx, "evt-1"); err != nil {
		t.Fatal(err)
	}

	ds, _ := s.Read()
	if !ds.HasProcessedEvent("evt-1") {
		t.Error("Event key not recorded")
	}
	if len(ds.ProcessedEvents) != 1 {
		t.Errorf("ProcessedEvents = %v, want single entry", ds.ProcessedEvents)
	}
}

func TestListStaleDispatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	older := time.Now().Add(-3 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	for _, rec := range []*DispatchRecord{
		{ID: "old", DispatchedAt: old},
		{ID: "older", DispatchedAt: older},
		{ID: "fresh", DispatchedAt: recent},
	} {
		if err := s.RegisterDispatch(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	stale, err := s.ListStaleDispatches(time.Hour)
	if err != nil {
		t.Fatalf("ListStaleDispatches error: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("Got %d stale records, want 2", len(stale))
	}
	if stale[0].ID != "older" || stale[1].ID != "old" {
		t.Errorf("Stale order = [%s %s], want oldest first", stale[0].ID, stale[1].ID)
	}
}

func TestPruneCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustRegister := func(id, sess string) {
		t.Helper()
		if err := s.RegisterDispatch(ctx, &DispatchRecord{ID: id, SessionRef: sess}); err != nil {
			t.Fatal(err)
		}
	}
	mustRegister("ancient", "sess-a")
	mustRegister("recent", "sess-b")

	oldTime := time.Now().Add(-30 * 24 * time.Hour)
	if err := s.CompleteDispatch(ctx, "ancient", StatusDone, func(r *DispatchRecord) {
		r.CompletedAt = &oldTime
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteDispatch(ctx, "recent", StatusStuck, nil); err != nil {
		t.Fatal(err)
	}

	pruned, err := s.PruneCompleted(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneCompleted error: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("Pruned %d, want 1", pruned)
	}

	ds, _ := s.Read()
	if _, ok := ds.Dispatches.Completed["ancient"]; ok {
		t.Error("Old record survived pruning")
	}
	if _, ok := ds.Dispatches.Completed["recent"]; !ok {
		t.Error("Recent record was pruned")
	}
	if _, ok := ds.SessionMap["sess-a"]; ok {
		t.Error("Pruned record's session entry survived")
	}
}
