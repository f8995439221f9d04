package guard

import (
	"context"
	"testing"
	"time"

	"foreman/internal/store"
)

func newTestGuard(t *testing.T, opts Options) (*Guard, *store.Store) {
	t.Helper()
	s := store.New(t.TempDir(), 30*time.Second)
	if opts.DispatchStaleness == 0 {
		opts.DispatchStaleness = 30 * time.Minute
	}
	if opts.DedupTTL == 0 {
		opts.DedupTTL = time.Minute
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = time.Second
	}
	return New(s, opts), s
}

func TestAdmitAndRelease(t *testing.T) {
	g, _ := newTestGuard(t, Options{})
	ctx := context.Background()

	if err := g.Admit(ctx, "fm-1"); err != nil {
		t.Fatalf("Admit error: %v", err)
	}
	if err := g.Admit(ctx, "fm-1"); err == nil {
		t.Fatal("Second Admit for same identifier should fail")
	}

	g.Release("fm-1")
	if err := g.Admit(ctx, "fm-1"); err != nil {
		t.Fatalf("Admit after Release error: %v", err)
	}
}

func TestAdmitBlockedByFreshStoreRecord(t *testing.T) {
	g, s := newTestGuard(t, Options{})
	ctx := context.Background()

	// Fresh active record, but not in this process's active set
	// (simulates a second trigger racing an in-flight dispatch).
	if err := s.RegisterDispatch(ctx, &store.DispatchRecord{ID: "fm-1"}); err != nil {
		t.Fatal(err)
	}

	if err := g.Admit(ctx, "fm-1"); err == nil {
		t.Fatal("Admit should refuse a non-stale active record")
	}
	if len(g.ActiveIDs()) != 0 {
		t.Error("Failed admission must not leak a reservation")
	}
}

func TestAdmitReclaimsStaleRecord(t *testing.T) {
	g, s := newTestGuard(t, Options{DispatchStaleness: 30 * time.Minute})
	ctx := context.Background()

	// Active record older than the staleness threshold, left behind by a
	// process that died before completing.
	if err := s.RegisterDispatch(ctx, &store.DispatchRecord{
		ID:           "fm-1",
		DispatchedAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	if err := g.Admit(ctx, "fm-1"); err != nil {
		t.Fatalf("Admit should reclaim stale record, got %v", err)
	}

	ds, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ds.Dispatches.Active["fm-1"]; ok {
		t.Error("Stale record not removed from store")
	}

	// Identifier is dispatchable again under the fresh reservation.
	if err := s.RegisterDispatch(ctx, &store.DispatchRecord{ID: "fm-1"}); err != nil {
		t.Fatalf("Re-dispatch after reclaim failed: %v", err)
	}
}

func TestCheckAndMarkWithinTTL(t *testing.T) {
	g, _ := newTestGuard(t, Options{DedupTTL: time.Minute})

	if g.CheckAndMark("evt-1") {
		t.Fatal("First delivery should not be a duplicate")
	}
	if !g.CheckAndMark("evt-1") {
		t.Fatal("Second delivery within TTL should be a duplicate")
	}
	if g.CheckAndMark("evt-2") {
		t.Fatal("Different key should not be a duplicate")
	}
}

func TestDedupExpiryAndSweep(t *testing.T) {
	g, _ := newTestGuard(t, Options{
		DedupTTL:      50 * time.Millisecond,
		SweepInterval: 20 * time.Millisecond,
	})
	g.Start()
	defer g.Stop()

	if g.CheckAndMark("evt-1") {
		t.Fatal("First delivery should not be a duplicate")
	}

	// After TTL plus a sweep interval, the key is treated as new.
	time.Sleep(100 * time.Millisecond)

	g.mu.Lock()
	_, present := g.dedup["evt-1"]
	g.mu.Unlock()
	if present {
		t.Error("Sweeper did not remove expired entry")
	}

	if g.CheckAndMark("evt-1") {
		t.Fatal("Expired key should be treated as new")
	}
}

func TestForgetAllowsImmediateRetry(t *testing.T) {
	g, _ := newTestGuard(t, Options{DedupTTL: time.Minute})

	if g.CheckAndMark("evt-1") {
		t.Fatal("First delivery should not be a duplicate")
	}
	if !g.CheckAndMark("evt-1") {
		t.Fatal("Second delivery within TTL should be a duplicate")
	}

	g.Forget("evt-1")
	if g.CheckAndMark("evt-1") {
		t.Fatal("Forgotten key should be treated as new")
	}
}

func TestDedupKey(t *testing.T) {
	if got := DedupKey("dispatch", "fm-1"); got != "dispatch:fm-1" {
		t.Errorf("DedupKey = %q", got)
	}
	if got := DedupKey("evt"); got != "evt" {
		t.Errorf("DedupKey single = %q", got)
	}
}
