package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store and the locker.
const DefaultPrefix = "saevis:tree:"

// farFuture is the index score used for trees that never expire (2100-01-01).
const farFuture = 4102444800

// Store implements ports.TreeStore using Redis.
// Each tree is stored as one JSON document; a sorted set indexes the live IDs by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored trees. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for trees.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share the connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Prefix returns the key prefix in use.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(treeID string) string {
	return s.prefix + treeID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the tree and refreshes its index entry in one pipeline.
func (s *Store) Save(ctx context.Context, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(tree.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: tree.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save tree %q to redis: %w", tree.ID, err)
	}
	return nil
}

// Load retrieves the tree from Redis.
func (s *Store) Load(ctx context.Context, treeID string) (*domain.Tree, error) {
	val, err := s.client.Get(ctx, s.key(treeID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTreeNotFound
		}
		return nil, fmt.Errorf("failed to get tree %q from redis: %w", treeID, err)
	}

	var tree domain.Tree
	if err := json.Unmarshal(val, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree %q: %w", treeID, err)
	}
	return &tree, nil
}

// Delete removes the tree and its index entry.
func (s *Store) Delete(ctx context.Context, treeID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(treeID))
	pipe.ZRem(ctx, s.indexKey(), treeID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete tree %q: %w", treeID, err)
	}
	return nil
}

// List returns the live tree IDs, pruning index entries whose TTL has passed.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired trees: %w", err)
	}

	trees, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	return trees, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
