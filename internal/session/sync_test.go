package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
)

func TestApplyRejectsInvalidTree(t *testing.T) {
	ts := &fakeTreeStore{}
	s := NewSynchronizer(ts)

	_, err := s.Apply(context.Background(), uuid.New(), models.FileTree{}, nil, nil)
	require.Error(t, err)
	assert.Nil(t, ts.appliedTree())

	_, err = s.Apply(context.Background(), uuid.New(),
		models.FileTree{"../evil": models.NewFileNode("x")}, nil, nil)
	require.Error(t, err)
}

func TestApplyReturnsUpdatedSnapshot(t *testing.T) {
	ts := &fakeTreeStore{}
	s := NewSynchronizer(ts)

	tree := models.FileTree{"main.go": models.NewFileNode("package main")}
	build := &models.Command{MainItem: "go", Commands: []string{"build"}}

	project, err := s.Apply(context.Background(), uuid.New(), tree, build, nil)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, tree, project.FileTree)
	assert.Equal(t, build, ts.build)
}

// countingTreeStore verifies applies for one project never overlap.
type countingTreeStore struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (c *countingTreeStore) ReplaceFileTree(_ context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error) {
	n := c.inFlight.Add(1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	c.inFlight.Add(-1)
	c.calls.Add(1)

	return &models.Project{ID: projectID, FileTree: tree}, nil
}

func TestApplySerializesPerProject(t *testing.T) {
	ts := &countingTreeStore{}
	s := NewSynchronizer(ts)
	pid := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree := models.FileTree{"f.txt": models.NewFileNode("v")}
			_, err := s.Apply(context.Background(), pid, tree, nil, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(16), ts.calls.Load())
	assert.Equal(t, int32(1), ts.maxSeen.Load())
}
