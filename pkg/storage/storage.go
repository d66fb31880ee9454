// Package storage provides the keyed storage backend: a single-value store
// plus an ordered append-only list store, both addressed by string key, with
// pluggable drivers selected through a configuration-time discriminated
// union in the same shape the vector package uses for its providers.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/memento/pkg/errs"
)

// Store is the keyed storage contract every driver implements. Deletion of a
// key removes both its single value and any ordered list under the same key.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)

	Append(ctx context.Context, key string, item []byte) error
	GetRange(ctx context.Context, key string, start, count int) ([][]byte, error)
}

// ProviderType identifies a storage driver implementation.
type ProviderType string

const (
	// ProviderMemory is an in-process map-backed store. Always available,
	// the default when no Type is configured, and loses all data on exit.
	ProviderMemory ProviderType = "memory"

	// ProviderSQLite is an embedded file-based driver over database/sql.
	ProviderSQLite ProviderType = "sqlite"

	// ProviderPostgres and ProviderMySQL are networked SQL-backed drivers,
	// interchangeable at the Store contract level.
	ProviderPostgres ProviderType = "postgres"
	ProviderMySQL    ProviderType = "mysql"

	// ProviderRedis is a networked low-latency driver, typically selected
	// for the session cache tier.
	ProviderRedis ProviderType = "redis"
)

// ProviderConfig is the configuration for creating a Store.
type ProviderConfig struct {
	Type ProviderType `yaml:"type"`

	SQLite   *SQLiteConfig `yaml:"sqlite,omitempty"`
	Postgres *SQLConfig    `yaml:"postgres,omitempty"`
	MySQL    *SQLConfig    `yaml:"mysql,omitempty"`
	Redis    *RedisConfig  `yaml:"redis,omitempty"`
}

// SetDefaults fills unset fields with their defaults.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderMemory
	}
}

// Validate checks the configuration for the selected Type.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderMemory:
		return nil
	case ProviderSQLite:
		if c.SQLite == nil || c.SQLite.Path == "" {
			return errs.New(errs.Validation, "sqlite storage path is required")
		}
		return nil
	case ProviderPostgres:
		if c.Postgres == nil || c.Postgres.DSN == "" {
			return errs.New(errs.Validation, "postgres storage dsn is required")
		}
		return nil
	case ProviderMySQL:
		if c.MySQL == nil || c.MySQL.DSN == "" {
			return errs.New(errs.Validation, "mysql storage dsn is required")
		}
		return nil
	case ProviderRedis:
		if c.Redis == nil || c.Redis.Addr == "" {
			return errs.New(errs.Validation, "redis storage addr is required")
		}
		return nil
	default:
		return errs.Newf(errs.Validation, "unknown storage provider type %q", c.Type)
	}
}

// NewStore constructs a Store from configuration. It does not connect; the
// caller calls Connect before use.
func NewStore(cfg *ProviderConfig) (Store, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case ProviderMemory:
		return NewMemoryStore(), nil
	case ProviderSQLite:
		return NewSQLiteStore(*cfg.SQLite), nil
	case ProviderPostgres:
		return NewSQLStore("postgres", *cfg.Postgres), nil
	case ProviderMySQL:
		return NewSQLStore("mysql", *cfg.MySQL), nil
	case ProviderRedis:
		return NewRedisStore(*cfg.Redis), nil
	default:
		return nil, errs.Newf(errs.Validation, "unknown storage provider type %q", cfg.Type)
	}
}

// Registry manages named Store instances, the same shape the vector and
// embedding provider registries use.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register adds a store under name. It fails if name is already taken.
func (r *Registry) Register(name string, store Store) error {
	if name == "" {
		return errs.New(errs.Validation, "store name cannot be empty")
	}
	if store == nil {
		return errs.New(errs.Validation, "store cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return errs.Newf(errs.Conflict, "store %q already registered", name)
	}
	r.stores[name] = store
	return nil
}

// Get retrieves a store by name.
func (r *Registry) Get(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// List returns all registered store names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}

// Close disconnects every registered store.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []error
	for name, s := range r.stores {
		if err := s.Disconnect(ctx); err != nil {
			failures = append(failures, fmt.Errorf("disconnecting store %q: %w", name, err))
		}
	}
	r.stores = make(map[string]Store)
	if len(failures) > 0 {
		return fmt.Errorf("errors closing stores: %v", failures)
	}
	return nil
}
