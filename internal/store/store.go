package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"foreman/internal/constants"
	"foreman/internal/lock"
	"foreman/internal/util"
)

// Common errors
var (
	ErrDispatchExists   = errors.New("dispatch already active for identifier")
	ErrDispatchNotFound = errors.New("dispatch not found")
	ErrProjectNotFound  = errors.New("project dispatch state not found")
)

// Store reads and mutates the persisted dispatch state under a state
// directory. All mutation goes through an exclusive advisory lock and an
// atomic write-temp-then-rename replace, so concurrent pipelines and
// orchestrator loops never observe a partial write.
type Store struct {
	dir           string
	lockStaleness time.Duration
}

// New creates a Store rooted at dir. lockStaleness is the age past which
// a crashed holder's lock marker is reclaimed.
func New(dir string, lockStaleness time.Duration) *Store {
	return &Store{dir: dir, lockStaleness: lockStaleness}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// storePath returns the dispatch store file path.
func (s *Store) storePath() string {
	return filepath.Join(s.dir, constants.DispatchStoreFile)
}

// projectPath returns the dispatch state file path for a project.
func (s *Store) projectPath(projectID string) string {
	return filepath.Join(s.dir, constants.DirProjects, projectID+".json")
}

// Read returns a snapshot of the dispatch store. A missing file yields
// an empty store.
func (s *Store) Read() (*DispatchStore, error) {
	ds := newDispatchStore()
	if err := util.ReadJSON(s.storePath(), ds); err != nil {
		if os.IsNotExist(err) {
			return ds, nil
		}
		return nil, fmt.Errorf("reading dispatch store: %w", err)
	}
	ds.normalize()
	return ds, nil
}

// Mutate runs fn over the current store contents under the exclusive
// lock and atomically persists the result. If fn returns an error the
// store is left untouched.
func (s *Store) Mutate(ctx context.Context, fn func(*DispatchStore) error) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	return lock.With(ctx, s.storePath(), s.lockStaleness, func() error {
		ds, err := s.Read()
		if err != nil {
			return err
		}
		if err := fn(ds); err != nil {
			return err
		}
		if err := util.AtomicWriteJSON(s.storePath(), ds); err != nil {
			return fmt.Errorf("writing dispatch store: %w", err)
		}
		return nil
	})
}

// RegisterDispatch records a new active dispatch for rec.ID. Returns
// ErrDispatchExists if the identifier already has an active record.
func (s *Store) RegisterDispatch(ctx context.Context, rec *DispatchRecord) error {
	return s.Mutate(ctx, func(ds *DispatchStore) error {
		if _, ok := ds.Dispatches.Active[rec.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDispatchExists, rec.ID)
		}
		if rec.DispatchedAt.IsZero() {
			rec.DispatchedAt = time.Now()
		}
		if rec.Status == "" {
			rec.Status = StatusDispatched
		}
		// Identifier lives in exactly one namespace
		delete(ds.Dispatches.Completed, rec.ID)
		ds.Dispatches.Active[rec.ID] = rec
		if rec.SessionRef != "" {
			ds.SessionMap[rec.SessionRef] = rec.ID
		}
		return nil
	})
}

// UpdateDispatchStatus updates the status (and bookkeeping fields) of an
// active dispatch.
func (s *Store) UpdateDispatchStatus(ctx context.Context, id string, status DispatchStatus, update func(*DispatchRecord)) error {
	return s.Mutate(ctx, func(ds *DispatchStore) error {
		rec, ok := ds.Dispatches.Active[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrDispatchNotFound, id)
		}
		rec.Status = status
		if update != nil {
			update(rec)
		}
		if rec.SessionRef != "" {
			ds.SessionMap[rec.SessionRef] = rec.ID
		}
		return nil
	})
}

// CompleteDispatch moves an active dispatch to the completed namespace
// with the given terminal status.
func (s *Store) CompleteDispatch(ctx context.Context, id string, status DispatchStatus, update func(*DispatchRecord)) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot complete dispatch %s with non-terminal status %s", id, status)
	}
	return s.Mutate(ctx, func(ds *DispatchStore) error {
		rec, ok := ds.Dispatches.Active[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrDispatchNotFound, id)
		}
		rec.Status = status
		now := time.Now()
		rec.CompletedAt = &now
		if update != nil {
			update(rec)
		}
		delete(ds.Dispatches.Active, id)
		ds.Dispatches.Completed[id] = rec
		return nil
	})
}

// RemoveActiveDispatch deletes an active dispatch without archiving it.
// Used by staleness reclaim; removing a missing identifier is not an
// error.
func (s *Store) RemoveActiveDispatch(ctx context.Context, id string) error {
	return s.Mutate(ctx, func(ds *DispatchStore) error {
		rec, ok := ds.Dispatches.Active[id]
		if !ok {
			return nil
		}
		if rec.SessionRef != "" {
			delete(ds.SessionMap, rec.SessionRef)
		}
		delete(ds.Dispatches.Active, id)
		return nil
	})
}

// MarkEventProcessed appends a trigger-event key to the persisted
// idempotency set. Re-marking a known key is a no-op.
func (s *Store) MarkEventProcessed(ctx context.Context, key string) error {
	return s.Mutate(ctx, func(ds *DispatchStore) error {
		if ds.HasProcessedEvent(key) {
			return nil
		}
		ds.ProcessedEvents = append(ds.ProcessedEvents, key)
		return nil
	})
}
