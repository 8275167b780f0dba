// Package cli wires a project configuration into a running engine for the saevis commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/config"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/cache"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/file"
	api "github.com/gnueaj/SAE-vis-sub000/pkg/adapters/http"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/process"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/redis"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/sqlite"
	"github.com/gnueaj/SAE-vis-sub000/pkg/observability"
	"github.com/gnueaj/SAE-vis-sub000/pkg/persistence/middleware"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime is an engine together with the adapters it was built from.
type Runtime struct {
	Engine  *saevis.Engine
	Config  *config.Config
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// Table is the metric table behind the memory provider, nil for the other providers.
	Table *memory.Table
	// Cache is the provider cache, nil when cache_size is 0.
	Cache *cache.Provider

	closers []func() error
}

// NewRuntime builds the provider, store and engine described by cfg.
// Callers must Close the runtime.
func NewRuntime(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}

	provider, err := rt.provider()
	if err != nil {
		return nil, err
	}
	store, locker, err := rt.store()
	if err != nil {
		return nil, err
	}
	if store, err = rt.seal(store); err != nil {
		_ = rt.Close()
		return nil, err
	}

	opts := []saevis.Option{
		saevis.WithProvider(provider),
		saevis.WithStore(store),
		saevis.WithFilter(cfg.Filter),
		saevis.WithLogger(logger),
		saevis.WithLifecycleHooks(observability.Chain(observability.LogHooks(logger), rt.Metrics.Hooks())),
	}
	if locker != nil {
		opts = append(opts, saevis.WithLocker(locker))
	}
	rt.Engine, err = saevis.New(opts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return rt, nil
}

func (rt *Runtime) provider() (ports.MetricGroupProvider, error) {
	cfg := rt.Config
	var inner ports.MetricGroupProvider
	switch cfg.Provider.Kind {
	case config.ProviderHTTP:
		var opts []api.ClientOption
		if cfg.Provider.Timeout > 0 {
			opts = append(opts, api.WithTimeout(cfg.Provider.Timeout))
		}
		inner = api.NewClient(cfg.Provider.URL, opts...)
	case config.ProviderProcess:
		inner = process.New(cfg.Provider.Command,
			process.WithArgs(cfg.Provider.Args...),
			process.WithEnv(cfg.Provider.Env),
			process.WithBaseDir(cfg.Dir()),
			process.WithTimeout(cfg.Provider.Timeout),
			process.WithLogger(rt.Logger),
		)
	default:
		table, err := memory.LoadTable(cfg.TablePath())
		if err != nil {
			return nil, err
		}
		rt.Table = table
		inner = table
		rt.Logger.Info("metric table loaded", "path", cfg.TablePath(), "items", table.Len())
	}

	if cfg.CacheSize == 0 {
		return inner, nil
	}
	c, err := cache.New(inner, cache.WithSize(cfg.CacheSize), cache.WithLogger(rt.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider cache: %w", err)
	}
	rt.Cache = c
	return c, nil
}

func (rt *Runtime) store() (ports.TreeStore, ports.DistributedLocker, error) {
	sc := rt.Config.Store
	switch sc.Kind {
	case config.StoreFile:
		return file.New(rt.Config.StoreDir()), nil, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(rt.Config.StorePath())
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, s.Close)
		return s, nil, nil
	case config.StoreRedis:
		var opts []redis.Option
		if sc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(sc.Prefix))
		}
		if sc.TTL > 0 {
			opts = append(opts, redis.WithTTL(sc.TTL))
		}
		s := redis.New(sc.Addr, sc.Password, sc.DB, opts...)
		rt.closers = append(rt.closers, s.Close)
		return s, redis.NewLocker(s.Client(), s.Prefix()), nil
	default:
		return memory.NewStore(), nil, nil
	}
}

// seal wraps store with the encryption middleware when a key is configured.
func (rt *Runtime) seal(store ports.TreeStore) (ports.TreeStore, error) {
	sc := rt.Config.Store
	if sc.EncryptionKey == "" {
		return store, nil
	}
	cfg := middleware.EncryptionConfig{}
	var err error
	if cfg.ActiveKey, err = middleware.ParseKey(sc.EncryptionKey); err != nil {
		return nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range sc.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, mw), nil
}

// BuildTrees (re)creates every tree named in the configuration, in name order.
// An existing tree with the same ID is replaced.
func (rt *Runtime) BuildTrees(ctx context.Context) ([]string, error) {
	var built []string
	for _, name := range rt.Config.TreeNames() {
		if err := rt.Engine.DeleteTree(ctx, name); err != nil {
			return built, fmt.Errorf("tree %q: %w", name, err)
		}
		if _, err := rt.Engine.NewTree(ctx, name); err != nil {
			return built, fmt.Errorf("tree %q: %w", name, err)
		}
		tree, err := rt.Engine.Grow(ctx, name, rt.Config.Trees[name])
		if err != nil {
			return built, fmt.Errorf("tree %q: %w", name, err)
		}
		rt.Logger.Info("tree built", "tree_id", name, "nodes", len(tree.Nodes), "leaves", len(tree.Leaves()))
		built = append(built, name)
	}
	return built, nil
}

// Close releases stores and connections.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
