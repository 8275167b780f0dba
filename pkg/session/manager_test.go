package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/gnueaj/SAE-vis-sub000/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, treeID)
}

func TestManager_UpdateSerializesReadModifyWrite(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Create(ctx, domain.NewTree(id)))

	var wg sync.WaitGroup
	concurrentWrites := 10
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(_ context.Context, tree *domain.Tree) (*domain.Tree, error) {
				tree.Root().Generation++
				return tree, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tree, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(concurrentWrites), tree.Root().Generation, "no update may be lost")
}

func TestManager_UpdateFailureSavesNothing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Create(ctx, domain.NewTree("t")))

	boom := errors.New("boom")
	_, err := manager.Update(ctx, "t", func(_ context.Context, tree *domain.Tree) (*domain.Tree, error) {
		tree.Root().Generation = 99
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	tree, err := manager.Load(ctx, "t")
	require.NoError(t, err)
	assert.Zero(t, tree.Root().Generation)

	_, err = manager.Update(ctx, "missing", func(_ context.Context, tree *domain.Tree) (*domain.Tree, error) { return tree, nil })
	assert.ErrorIs(t, err, domain.ErrTreeNotFound)
}

func TestManager_CreateRejectsDuplicates(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Create(ctx, domain.NewTree("t")))
	assert.ErrorIs(t, manager.Create(ctx, domain.NewTree("t")), domain.ErrTreeExists)
}

// countingLocker records distributed lock usage.
type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	lastTTL  time.Duration
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.locks++
	l.lastTTL = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, domain.NewTree("t")))
	_, err := manager.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, time.Minute, locker.lastTTL)

	locker.failWith = errors.New("redis unavailable")
	err = manager.Save(ctx, domain.NewTree("t"))
	assert.ErrorContains(t, err, "distributed lock")
}
