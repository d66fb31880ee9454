// Package embedding provides the embedding provider contract: turning text
// into vectors, with retry/backoff on transient failures and a process-wide
// disabled state once a provider reports a persistent failure.
package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/kadirpekel/memento/pkg/errs"
)

// Provider generates embedding vectors for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
	Close() error
}

// ProviderType identifies an embedding provider implementation.
type ProviderType string

const (
	// ProviderHosted calls a hosted HTTP API with an OpenAI-shaped
	// request/response (model, input, data[].embedding).
	ProviderHosted ProviderType = "hosted"

	// ProviderLocal calls a self-hosted embedding endpoint (an
	// Ollama-shaped model/prompt request, single embedding response).
	ProviderLocal ProviderType = "local"
)

// HTTPConfig configures either concrete provider.
type HTTPConfig struct {
	APIKey     string        `yaml:"api_key,omitempty"`
	Model      string        `yaml:"model"`
	Host       string        `yaml:"host,omitempty"`
	Dimension  int           `yaml:"dimension,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// ProviderConfig is the configuration for creating an embedding Provider.
type ProviderConfig struct {
	Type   ProviderType `yaml:"type"`
	Hosted *HTTPConfig  `yaml:"hosted,omitempty"`
	Local  *HTTPConfig  `yaml:"local,omitempty"`
}

// SetDefaults fills unset fields with their defaults.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderHosted
	}
}

// Validate checks the configuration for the selected Type.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderHosted:
		if c.Hosted == nil || c.Hosted.APIKey == "" {
			return errs.New(errs.Validation, "hosted embedding provider requires an api key")
		}
		return nil
	case ProviderLocal:
		if c.Local == nil || c.Local.Host == "" {
			return errs.New(errs.Validation, "local embedding provider requires a host")
		}
		return nil
	default:
		return errs.Newf(errs.Validation, "unknown embedding provider type %q", c.Type)
	}
}

// NewProvider constructs a Provider from configuration.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, errs.New(errs.Validation, "embedding provider configuration is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case ProviderHosted:
		return NewHostedProvider(*cfg.Hosted)
	case ProviderLocal:
		return NewLocalProvider(*cfg.Local)
	default:
		return nil, errs.Newf(errs.Validation, "unknown embedding provider type %q", cfg.Type)
	}
}

// Manager wraps a Provider with the disabled-for-the-process-session
// behavior: once the underlying provider reports a failure that survives
// its own retries, the Manager stops calling it and every subsequent Embed
// returns the same recorded reason without attempting the network again.
type Manager struct {
	provider Provider

	mu       sync.RWMutex
	disabled bool
	reason   string
}

// NewManager wraps provider in a Manager.
func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

// Embed generates an embedding, or returns a Capability error if embeddings
// have already been disabled for this process.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	disabled := m.disabled
	reason := m.reason
	m.mu.RUnlock()
	if disabled {
		return nil, errs.Newf(errs.Capability, "embeddings disabled: %s", reason).WithComponent("EmbeddingManager")
	}

	vec, err := m.provider.Embed(ctx, text)
	if err != nil {
		m.disable(err.Error())
		return nil, errs.Wrap(errs.Provider, err, "embed call failed").WithComponent("EmbeddingManager")
	}
	return vec, nil
}

func (m *Manager) disable(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = true
	m.reason = reason
}

// Disabled reports whether embeddings have been disabled for this process,
// and why.
func (m *Manager) Disabled() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disabled, m.reason
}

// Dimension and ModelName proxy the wrapped provider.
func (m *Manager) Dimension() int      { return m.provider.Dimension() }
func (m *Manager) ModelName() string   { return m.provider.ModelName() }
func (m *Manager) Close() error        { return m.provider.Close() }
