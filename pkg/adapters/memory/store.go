package memory

import (
	"context"
	"sync"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// Store implements ports.TreeStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Tree
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Tree),
	}
}

// Save persists a deep copy of the tree.
func (s *Store) Save(ctx context.Context, tree *domain.Tree) error {
	copied := tree.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tree.ID] = copied
	return nil
}

// Load retrieves a copy of the tree so callers can't mutate stored state by pointer.
func (s *Store) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.data[treeID]
	if !ok {
		return nil, domain.ErrTreeNotFound
	}
	return tree.Clone(), nil
}

// Delete removes the tree.
func (s *Store) Delete(ctx context.Context, treeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, treeID)
	return nil
}

// List returns the stored tree IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trees := make([]string, 0, len(s.data))
	for id := range s.data {
		trees = append(trees, id)
	}
	return trees, nil
}
