package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DefaultPath is the database location used when none is given.
const DefaultPath = ".saevis/trees.db"

// Store implements ports.TreeStore on a single SQLite database file.
// Trees are stored as JSON documents next to a few columns used for listing.
type Store struct {
	db   *sql.DB
	path string
}

// Summary describes a stored tree without decoding it.
type Summary struct {
	ID             string
	Nodes          int
	RootGeneration uint64
	UpdatedAt      time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema on %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Save inserts or replaces the tree.
func (s *Store) Save(ctx context.Context, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	var gen uint64
	if root := tree.Root(); root != nil {
		gen = root.Generation
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (id, data, node_count, root_generation, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			node_count = excluded.node_count,
			root_generation = excluded.root_generation,
			updated_at = excluded.updated_at`,
		tree.ID, string(data), len(tree.Nodes), int64(gen), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save tree %q: %w", tree.ID, err)
	}
	return nil
}

// Load retrieves a tree by ID.
func (s *Store) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM trees WHERE id = ?`, treeID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTreeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree %q: %w", treeID, err)
	}

	var tree domain.Tree
	if err := json.Unmarshal([]byte(data), &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree %q: %w", treeID, err)
	}
	return &tree, nil
}

// Delete removes a tree. Deleting a missing tree is not an error.
func (s *Store) Delete(ctx context.Context, treeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE id = ?`, treeID); err != nil {
		return fmt.Errorf("failed to delete tree %q: %w", treeID, err)
	}
	return nil
}

// List returns the stored tree IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM trees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tree id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Summaries lists stored trees, most recently saved first.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, node_count, root_generation, updated_at FROM trees ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tree summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			gen     int64
			updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Nodes, &gen, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan tree summary: %w", err)
		}
		sum.RootGeneration = uint64(gen)
		sum.UpdatedAt = time.Unix(0, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
