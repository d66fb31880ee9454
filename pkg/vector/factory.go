package vector

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/memento/pkg/errs"
)

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem uses chromem-go for embedded vector storage.
	// Zero-config, no external process. The always-available default.
	ProviderChromem ProviderType = "chromem"

	// ProviderQdrant uses Qdrant vector database.
	ProviderQdrant ProviderType = "qdrant"

	// ProviderPinecone uses Pinecone managed vector database.
	ProviderPinecone ProviderType = "pinecone"
)

// ProviderConfig is the configuration for creating vector providers.
type ProviderConfig struct {
	Type ProviderType `yaml:"type"`

	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// Validate checks the configuration.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderChromem:
		return nil
	case ProviderQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return errs.New(errs.Validation, "qdrant host is required")
		}
		return nil
	case ProviderPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return errs.New(errs.Validation, "pinecone api_key is required")
		}
		return nil
	case "":
		return errs.New(errs.Validation, "provider type is required")
	default:
		return errs.Newf(errs.Validation, "unknown provider type: %q", c.Type)
	}
}

// newRawProvider creates the low-level Provider for a configuration. It does
// not bind a collection or dimension; Manager does that.
func newRawProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return NilProvider{}, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case ProviderChromem:
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemProvider(chromemCfg)

	case ProviderQdrant:
		return NewQdrantProvider(*cfg.Qdrant)

	case ProviderPinecone:
		return NewPineconeProvider(*cfg.Pinecone)

	default:
		return nil, errs.Newf(errs.Validation, "unknown provider type: %q", cfg.Type)
	}
}

// Registry manages named vector Managers.
//
// This allows multiple collections to be configured and accessed by name,
// similar to how storage backends and embedding providers are managed.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*Manager)}
}

// Register adds a Manager under name.
func (r *Registry) Register(name string, m *Manager) error {
	if name == "" {
		return errs.New(errs.Validation, "manager name cannot be empty")
	}
	if m == nil {
		return errs.New(errs.Validation, "manager cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.managers[name]; exists {
		return errs.Newf(errs.Conflict, "vector manager %q already registered", name)
	}
	r.managers[name] = m
	return nil
}

// Get retrieves a Manager by name.
func (r *Registry) Get(name string) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[name]
	return m, ok
}

// List returns all registered manager names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	return names
}

// Close disconnects every registered manager.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []error
	for name, m := range r.managers {
		if err := m.Disconnect(); err != nil {
			failures = append(failures, fmt.Errorf("closing vector manager %q: %w", name, err))
		}
	}
	r.managers = make(map[string]*Manager)
	if len(failures) > 0 {
		return fmt.Errorf("errors closing vector managers: %v", failures)
	}
	return nil
}
