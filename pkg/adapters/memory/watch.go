package memory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Table whenever its backing file changes.
// Engines holding the table see the new rows on their next fetch; existing trees keep
// the item sets they were built with.
type Watcher struct {
	path     string
	table    *Table
	debounce time.Duration
	logger   *slog.Logger
	onReload func(*Table)
	onError  func(error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the settle interval.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// OnReload registers a callback run after every successful reload,
// e.g. to purge a cache sitting in front of the table.
func OnReload(fn func(*Table)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// OnReloadError registers a callback for files that fail to parse.
// The table keeps its previous rows in that case.
func OnReloadError(fn func(error)) WatchOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher creates a watcher that keeps table in sync with the file at path.
func NewWatcher(path string, table *Table, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		table:    table,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. It watches the parent directory so that editors which
// save by renaming a temp file over the original are still noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("watching metric table", "path", w.path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !relevant(event.Op) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() == nil {
					w.reload()
				}
			})
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "path", w.path, "err", err)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	next, err := LoadTable(w.path)
	if err != nil {
		w.logger.Error("metric table reload failed", "path", w.path, "err", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.table.Replace(next)
	w.logger.Info("metric table reloaded", "path", w.path, "items", w.table.Len())
	if w.onReload != nil {
		w.onReload(w.table)
	}
}
