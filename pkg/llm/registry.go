package llm

import (
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/registry"
)

// Registry holds named provider instances, e.g. one per configured LLM
// profile.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// CreateFromConfig builds a Provider of the type named by cfg.Type, and
// registers it under name.
func (r *Registry) CreateFromConfig(name string, cfg Config) (Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.Type {
	case "openai":
		provider, err = NewOpenAI(cfg)
	case "anthropic":
		provider, err = NewAnthropic(cfg)
	case "gemini":
		provider, err = NewGemini(cfg)
	case "ollama":
		provider, err = NewOllama(cfg)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create provider").WithComponent("llm")
	}

	if regErr := r.Register(name, provider); regErr != nil {
		return nil, errs.Wrap(errs.Conflict, regErr, "register provider").WithComponent("llm")
	}
	return provider, nil
}

// GetProvider fetches a registered provider by name.
func (r *Registry) GetProvider(name string) (Provider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, errs.Newf(errs.NotFound, "llm provider %q not registered", name).WithComponent("llm")
	}
	return p, nil
}
