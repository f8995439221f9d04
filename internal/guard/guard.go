// Package guard provides the process-local concurrency guard: an active
// identifier set that enforces at-most-one execution per item, and a
// TTL-bounded dedup cache that absorbs at-least-once delivery of external
// trigger events.
//
// The guard is an injected component with an explicit lifetime, not a
// package-level singleton, so tests construct isolated instances.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"foreman/internal/store"
)

// Guard tracks in-flight identifiers and recently handled trigger keys.
type Guard struct {
	store             *store.Store
	dispatchStaleness time.Duration
	dedupTTL          time.Duration
	sweepInterval     time.Duration
	logger            func(format string, args ...interface{})

	mu     sync.Mutex
	active map[string]struct{}
	dedup  map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configure a Guard.
type Options struct {
	// DispatchStaleness is the age past which a persisted active record
	// with no in-memory owner is reclaimed.
	DispatchStaleness time.Duration
	// DedupTTL is how long a trigger key suppresses duplicates.
	DedupTTL time.Duration
	// SweepInterval is how often expired dedup entries are collected.
	SweepInterval time.Duration
	// Logger receives reclaim and sweep diagnostics (may be nil).
	Logger func(format string, args ...interface{})
}

// New creates a Guard over the given store.
func New(s *store.Store, opts Options) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Guard{
		store:             s,
		dispatchStaleness: opts.DispatchStaleness,
		dedupTTL:          opts.DedupTTL,
		sweepInterval:     opts.SweepInterval,
		logger:            logger,
		active:            make(map[string]struct{}),
		dedup:             make(map[string]time.Time),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start begins the periodic dedup sweeper.
func (g *Guard) Start() {
	g.wg.Add(1)
	go g.run()
}

// Stop halts the sweeper and waits for it to exit.
func (g *Guard) Stop() {
	g.cancel()
	g.wg.Wait()
}

// Admit reserves identifier id for execution. Admission fails if the
// identifier is already active in this process, or has a non-stale
// active record in the store. A stale active record (older than the
// dispatch staleness threshold and unknown to this process, e.g. left
// behind by a crash) is reclaimed: removed from the store so the
// identifier becomes dispatchable again.
//
// The in-memory reservation happens before any persistence write; call
// Release if the subsequent dispatch registration fails.
func (g *Guard) Admit(ctx context.Context, id string) error {
	g.mu.Lock()
	if _, ok := g.active[id]; ok {
		g.mu.Unlock()
		return fmt.Errorf("identifier %s is already executing", id)
	}
	g.active[id] = struct{}{}
	g.mu.Unlock()

	ds, err := g.store.Read()
	if err != nil {
		g.Release(id)
		return err
	}

	rec, ok := ds.Dispatches.Active[id]
	if !ok {
		return nil
	}

	if time.Since(rec.DispatchedAt) < g.dispatchStaleness {
		g.Release(id)
		return fmt.Errorf("identifier %s has an active dispatch (since %s)",
			id, rec.DispatchedAt.Format(time.RFC3339))
	}

	// Stale record from a dead process: reclaim it.
	g.logger("guard: reclaiming stale dispatch for %s (dispatched %s)",
		id, rec.DispatchedAt.Format(time.RFC3339))
	if err := g.store.RemoveActiveDispatch(ctx, id); err != nil {
		g.Release(id)
		return fmt.Errorf("reclaiming stale dispatch for %s: %w", id, err)
	}
	return nil
}

// Release frees the in-memory reservation for id.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	delete(g.active, id)
	g.mu.Unlock()
}

// ActiveIDs returns a snapshot of the currently reserved identifiers.
func (g *Guard) ActiveIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	return ids
}

// CheckAndMark reports whether key was seen within the TTL window and,
// if not, marks it as seen. Expired entries are treated as new; they are
// physically removed by the periodic sweep rather than on every call.
func (g *Guard) CheckAndMark(key string) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if seen, ok := g.dedup[key]; ok && now.Sub(seen) < g.dedupTTL {
		return true
	}
	g.dedup[key] = now
	return false
}

// Forget drops a dedup key so the same trigger may be retried
// immediately, e.g. after the handling attempt failed.
func (g *Guard) Forget(key string) {
	g.mu.Lock()
	delete(g.dedup, key)
	g.mu.Unlock()
}

// DedupKey builds a composite trigger key from its parts.
func DedupKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// run is the sweeper loop.
func (g *Guard) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops dedup entries past the TTL.
func (g *Guard) sweep() {
	now := time.Now()
	g.mu.Lock()
	removed := 0
	for key, seen := range g.dedup {
		if now.Sub(seen) >= g.dedupTTL {
			delete(g.dedup, key)
			removed++
		}
	}
	size := len(g.dedup)
	g.mu.Unlock()

	if removed > 0 {
		g.logger("guard: swept %d expired dedup entries (%d remain)", removed, size)
	}
}
