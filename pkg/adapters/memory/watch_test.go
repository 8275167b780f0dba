package memory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, w *memory.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,m\n1,0.1\n"), 0644))
	table, err := memory.LoadTable(path)
	require.NoError(t, err)

	var reloads atomic.Int32
	startWatcher(t, memory.NewWatcher(path, table,
		memory.WithDebounce(10*time.Millisecond),
		memory.OnReload(func(*memory.Table) { reloads.Add(1) }),
	))

	// The watch is registered asynchronously, so keep rewriting until it is seen.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("id,m\n1,0.1\n2,0.2\n3,0.3\n"), 0644)
		return table.Len() == 3
	}, 3*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))
}

func TestWatcher_KeepsRowsOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[{"id":1,"metrics":{"m":0.5}}]}`), 0644))
	table, err := memory.LoadTable(path)
	require.NoError(t, err)

	var failures atomic.Int32
	startWatcher(t, memory.NewWatcher(path, table,
		memory.WithDebounce(10*time.Millisecond),
		memory.OnReloadError(func(error) { failures.Add(1) }),
	))

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`{"items":[`), 0644)
		return failures.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, table.Len())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := memory.NewWatcher(filepath.Join(t.TempDir(), "missing", "table.csv"), memory.NewTable())
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestTable_Replace(t *testing.T) {
	table := sampleTable()
	table.Replace(memory.NewTable(memory.Item{ID: 9, Metrics: map[string]float64{"m": 1}}))
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"m"}, table.Metrics())
}
