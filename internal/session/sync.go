package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/devroom-sh/devroom/internal/metrics"
	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/store"
)

// TreeStore persists whole-tree replacements.
type TreeStore interface {
	ReplaceFileTree(ctx context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error)
}

// Synchronizer applies file-tree payloads to the shared project state.
// A newly applied tree replaces the stored one wholesale; no partial
// merge is defined. Applies for the same project are serialized, so
// concurrent writers resolve to last-writer-wins at whole-tree
// granularity.
type Synchronizer struct {
	store TreeStore

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewSynchronizer creates a synchronizer backed by the given store.
func NewSynchronizer(ts TreeStore) *Synchronizer {
	return &Synchronizer{store: ts, locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (s *Synchronizer) projectLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Apply validates the tree, replaces the project's stored tree, and
// returns the updated snapshot. build and start may be nil; when set
// they are persisted alongside the tree.
func (s *Synchronizer) Apply(ctx context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error) {
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("invalid file tree: %w", err)
	}

	l := s.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	project, err := s.store.ReplaceFileTree(ctx, projectID, tree, build, start)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s not found", projectID)
	}

	metrics.FileTreesApplied.Inc()
	return project, nil
}

var _ TreeStore = (store.DataStore)(nil)
