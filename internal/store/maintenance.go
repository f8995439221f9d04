package store

import (
	"context"
	"sort"
	"time"
)

// ListStaleDispatches returns active records whose dispatch age exceeds
// maxAge, sorted oldest first. These are candidates for operator
// attention or staleness reclaim.
func (s *Store) ListStaleDispatches(maxAge time.Duration) ([]*DispatchRecord, error) {
	ds, err := s.Read()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []*DispatchRecord
	for _, rec := range ds.Dispatches.Active {
		if rec.DispatchedAt.Before(cutoff) {
			stale = append(stale, rec)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].DispatchedAt.Before(stale[j].DispatchedAt)
	})
	return stale, nil
}

// PruneCompleted deletes completed records older than maxAge and their
// session map entries. Returns the number of records removed.
func (s *Store) PruneCompleted(ctx context.Context, maxAge time.Duration) (int, error) {
	pruned := 0
	err := s.Mutate(ctx, func(ds *DispatchStore) error {
		cutoff := time.Now().Add(-maxAge)
		for id, rec := range ds.Dispatches.Completed {
			completedAt := rec.DispatchedAt
			if rec.CompletedAt != nil {
				completedAt = *rec.CompletedAt
			}
			if completedAt.Before(cutoff) {
				if rec.SessionRef != "" {
					delete(ds.SessionMap, rec.SessionRef)
				}
				delete(ds.Dispatches.Completed, id)
				pruned++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}
