package ports

import (
	"context"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// TreeStore defines the interface for persisting classification trees.
type TreeStore interface {
	// Save persists the tree under tree.ID, replacing any previous version.
	Save(ctx context.Context, tree *domain.Tree) error

	// Load retrieves a tree by ID.
	// Returns domain.ErrTreeNotFound if the tree does not exist.
	Load(ctx context.Context, treeID string) (*domain.Tree, error)

	// Delete removes a tree. Deleting a missing tree is not an error.
	Delete(ctx context.Context, treeID string) error

	// List returns the IDs of all stored trees.
	List(ctx context.Context) ([]string, error)
}
