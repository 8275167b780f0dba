package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/file"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TreeStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunTreeStoreContract(t, store)
}

func TestFileStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	tree := domain.NewTree("t1")
	require.NoError(t, store.Save(ctx, tree))
	tree.Root().Generation = 7
	require.NoError(t, store.Save(ctx, tree))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t1.json", entries[0].Name())

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.Root().Generation)
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewTree("b")))
	require.NoError(t, store.Save(ctx, domain.NewTree("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-c-123.json"), []byte("{}"), 0644))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domain.NewTree("../escape")))
	_, err := store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
