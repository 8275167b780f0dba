// Package config loads saevis project files.
//
// A project file is YAML (JSON is accepted too, being a subset of YAML):
//
//	log_level: info
//	table: features.csv
//	filter:
//	  sources: [llama_e-llama_s]
//	provider:
//	  kind: memory          # or http (url, timeout) or process (command, args, env, timeout)
//	cache_size: 256
//	store:
//	  kind: file            # memory | file (dir) | sqlite (path) | redis (addr, password, db, prefix, ttl)
//	  dir: .saevis/trees
//	  encryption_key: ${64 hex digits}   # optional, seals stored trees
//	trees:
//	  quality:
//	    - category: fuzz
//	      split: {type: range, metric: score_fuzz, thresholds: [0.5]}
//	    - node: root_score_fuzz_1
//	      split: {type: percentile, metric: score_detection, percentiles: [0.5]}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/dsl"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the project file looked up when no path is given.
const DefaultFile = "saevis.yaml"

const (
	ProviderMemory  = "memory"
	ProviderHTTP    = "http"
	ProviderProcess = "process"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is a parsed project file.
type Config struct {
	LogLevel  string            `mapstructure:"log_level"`
	Table     string            `mapstructure:"table"`
	Filter    domain.FilterSpec `mapstructure:"filter"`
	Provider  ProviderConfig    `mapstructure:"provider"`
	CacheSize int               `mapstructure:"cache_size"`
	Store     StoreConfig       `mapstructure:"store"`
	// Trees maps a tree ID to the stages that build it, applied in order.
	Trees map[string][]dsl.Stage `mapstructure:"-"`

	// dir is the directory of the project file; relative paths resolve against it.
	dir string
}

// ProviderConfig selects where metric groups come from.
type ProviderConfig struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Command, Args and Env describe the program run by the process provider.
	// The program runs in the project file directory.
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// StoreConfig selects where trees are persisted.
type StoreConfig struct {
	Kind     string        `mapstructure:"kind"`
	Dir      string        `mapstructure:"dir"`
	Path     string        `mapstructure:"path"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	// EncryptionKey, when set, seals every stored tree with AES-256-GCM (64 hex digits).
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys decrypt trees sealed before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Default returns the configuration used without a project file.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{Kind: ProviderMemory},
		Store:    StoreConfig{Kind: StoreMemory},
		Trees:    map[string][]dsl.Stage{},
		dir:      ".",
	}
}

// Load reads the project file at path. An empty path tries DefaultFile and falls back
// to Default when it does not exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates a project file.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	rawTrees := raw["trees"]
	delete(raw, "trees")

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &domain.ConfigError{Field: "config", Reason: err.Error()}
	}

	trees, err := decodeTrees(rawTrees)
	if err != nil {
		return nil, err
	}
	cfg.Trees = trees

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeTrees(raw any) (map[string][]dsl.Stage, error) {
	out := map[string][]dsl.Stage{}
	if raw == nil {
		return out, nil
	}
	byName, ok := raw.(map[string]any)
	if !ok {
		return nil, &domain.ConfigError{Field: "trees", Reason: "must map tree IDs to stage lists"}
	}

	var errs []error
	for name, list := range byName {
		items, ok := list.([]any)
		if !ok {
			errs = append(errs, &domain.ConfigError{Field: "trees." + name, Reason: "must be a list of stages"})
			continue
		}
		b := dsl.New()
		for i, item := range items {
			stage, err := decodeStage(item)
			if err != nil {
				errs = append(errs, fmt.Errorf("trees.%s[%d]: %w", name, i, err))
				continue
			}
			b.Add(stage)
		}
		stages, err := b.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("trees.%s: %w", name, err))
			continue
		}
		out[name] = stages
	}
	if len(errs) > 0 {
		sortErrors(errs)
		return nil, &domain.AggregateError{Errors: errs}
	}
	return out, nil
}

func decodeStage(item any) (dsl.Stage, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return dsl.Stage{}, &domain.ConfigError{Field: "stage", Reason: "must be a mapping"}
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	var node string
	if v, ok := fields["node"]; ok {
		node = fmt.Sprint(v)
		delete(fields, "node")
	}
	cfg, err := rules.DecodeStage(fields)
	if err != nil {
		return dsl.Stage{}, err
	}
	return dsl.Stage{Node: node, Config: cfg}, nil
}

// Validate checks the provider and store sections.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Kind {
	case ProviderMemory:
		if c.Table == "" {
			errs = append(errs, &domain.ConfigError{Field: "table", Reason: "required by the memory provider"})
		}
	case ProviderHTTP:
		if c.Provider.URL == "" {
			errs = append(errs, &domain.ConfigError{Field: "provider.url", Reason: "required by the http provider"})
		}
	case ProviderProcess:
		if c.Provider.Command == "" {
			errs = append(errs, &domain.ConfigError{Field: "provider.command", Reason: "required by the process provider"})
		}
	default:
		errs = append(errs, &domain.ConfigError{Field: "provider.kind", Reason: fmt.Sprintf("unknown provider %q", c.Provider.Kind)})
	}

	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreSQLite:
	case StoreRedis:
		if c.Store.Addr == "" {
			errs = append(errs, &domain.ConfigError{Field: "store.addr", Reason: "required by the redis store"})
		}
	default:
		errs = append(errs, &domain.ConfigError{Field: "store.kind", Reason: fmt.Sprintf("unknown store %q", c.Store.Kind)})
	}

	if c.CacheSize < 0 {
		errs = append(errs, &domain.ConfigError{Field: "cache_size", Reason: "must not be negative"})
	}

	if len(errs) > 0 {
		return &domain.AggregateError{Errors: errs}
	}
	return nil
}

// TablePath resolves the metric table path against the project file directory.
func (c *Config) TablePath() string {
	return c.resolve(c.Table)
}

// StoreDir resolves the file store directory against the project file directory.
func (c *Config) StoreDir() string {
	return c.resolve(c.Store.Dir)
}

// StorePath resolves the sqlite database path against the project file directory.
func (c *Config) StorePath() string {
	return c.resolve(c.Store.Path)
}

// Dir is the directory of the project file.
func (c *Config) Dir() string {
	return c.dir
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// TreeNames returns the configured tree IDs in lexical order.
func (c *Config) TreeNames() []string {
	names := make([]string, 0, len(c.Trees))
	for name := range c.Trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortErrors(errs []error) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
}
