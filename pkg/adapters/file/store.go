package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

const ext = ".json"

// Store implements ports.TreeStore using the local filesystem.
// Each tree is one JSON file named after its ID.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".saevis/trees".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".saevis", "trees")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(treeID string) (string, error) {
	if treeID == "" {
		return "", errors.New("tree ID cannot be empty")
	}
	if strings.ContainsAny(treeID, `/\`) || treeID == "." || treeID == ".." {
		return "", fmt.Errorf("tree ID %q is not a valid file name", treeID)
	}
	return filepath.Join(s.BasePath, treeID+ext), nil
}

// Save persists the tree atomically: write a temp file, fsync, rename over the destination.
func (s *Store) Save(ctx context.Context, tree *domain.Tree) error {
	destPath, err := s.path(tree.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure tree directory: %w", err)
	}

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+tree.ID+"-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing tree file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// Load retrieves the tree from its JSON file.
func (s *Store) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	filePath, err := s.path(treeID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTreeNotFound
		}
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	var tree domain.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree %q: %w", treeID, err)
	}
	return &tree, nil
}

// Delete removes the tree file. Deleting a missing tree is not an error.
func (s *Store) Delete(ctx context.Context, treeID string) error {
	filePath, err := s.path(treeID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete tree file: %w", err)
	}
	return nil
}

// List returns the stored tree IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}

	trees := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		trees = append(trees, strings.TrimSuffix(name, ext))
	}
	sort.Strings(trees)
	return trees, nil
}
