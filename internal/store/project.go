package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foreman/internal/constants"
	"foreman/internal/graph"
	"foreman/internal/lock"
	"foreman/internal/util"
)

// WriteProject persists a project dispatch state under its own lock.
// Called after every status mutation so readiness is always recomputed
// from durable state.
func (s *Store) WriteProject(ctx context.Context, state *graph.ProjectState) error {
	path := s.projectPath(state.ProjectID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating projects dir: %w", err)
	}
	return lock.With(ctx, path, s.lockStaleness, func() error {
		if err := util.AtomicWriteJSON(path, state); err != nil {
			return fmt.Errorf("writing project %s: %w", state.ProjectID, err)
		}
		return nil
	})
}

// ReadProject loads a project dispatch state. Returns ErrProjectNotFound
// if no state file exists.
func (s *Store) ReadProject(projectID string) (*graph.ProjectState, error) {
	var state graph.ProjectState
	if err := util.ReadJSON(s.projectPath(projectID), &state); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, fmt.Errorf("reading project %s: %w", projectID, err)
	}
	// Older files may lack allocated edge sets
	for _, item := range state.Issues {
		if item.DependsOn == nil {
			item.DependsOn = make(map[string]struct{})
		}
		if item.Unblocks == nil {
			item.Unblocks = make(map[string]struct{})
		}
	}
	return &state, nil
}

// RemoveProject deletes a project dispatch state file. Missing files are
// not an error.
func (s *Store) RemoveProject(projectID string) error {
	if err := os.Remove(s.projectPath(projectID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing project %s: %w", projectID, err)
	}
	return nil
}

// ListProjects returns the project IDs with persisted dispatch state.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, constants.DirProjects))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
