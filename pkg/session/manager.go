package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a distributed tree lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates tree access, serializing mutations of the same tree.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.TreeStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new tree Manager with the given persistence store.
func NewManager(store ports.TreeStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(treeID) after unlocking.
func (m *Manager) acquire(treeID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[treeID]
	if !exists {
		entry = &lockEntry{}
		m.locks[treeID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(treeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[treeID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, treeID)
	}
}

// Load retrieves a tree from the store.
func (m *Manager) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	var tree *domain.Tree
	err := m.WithLock(ctx, treeID, func(ctx context.Context) error {
		var err error
		tree, err = m.store.Load(ctx, treeID)
		return err
	})
	return tree, err
}

// Create persists a new tree, failing if the ID is taken.
func (m *Manager) Create(ctx context.Context, tree *domain.Tree) error {
	return m.WithLock(ctx, tree.ID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, tree.ID); err == nil {
			return fmt.Errorf("tree %q: %w", tree.ID, domain.ErrTreeExists)
		} else if !errors.Is(err, domain.ErrTreeNotFound) {
			return fmt.Errorf("failed to check tree existence: %w", err)
		}
		return m.store.Save(ctx, tree)
	})
}

// Save persists the tree.
func (m *Manager) Save(ctx context.Context, tree *domain.Tree) error {
	return m.WithLock(ctx, tree.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, tree)
	})
}

// Update loads the latest version of a tree, applies fn and saves the result,
// all while holding the tree's lock. Nothing is saved when fn fails.
func (m *Manager) Update(ctx context.Context, treeID string, fn func(context.Context, *domain.Tree) (*domain.Tree, error)) (*domain.Tree, error) {
	var out *domain.Tree
	err := m.WithLock(ctx, treeID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, treeID)
		if err != nil {
			return err
		}
		next, err := fn(ctx, current)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save tree: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

// Delete removes the tree from the store.
func (m *Manager) Delete(ctx context.Context, treeID string) error {
	return m.WithLock(ctx, treeID, func(ctx context.Context) error {
		return m.store.Delete(ctx, treeID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying tree store.
func (m *Manager) Store() ports.TreeStore {
	return m.store
}

// WithLock executes a function while holding the lock for the tree.
func (m *Manager) WithLock(ctx context.Context, treeID string, fn func(context.Context) error) error {
	entry := m.acquire(treeID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(treeID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, treeID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"tree_id", treeID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
