// Package prompt provides a layered, prioritized prompt composer. Providers
// contribute chunks of system-prompt content; the composer resolves them in
// descending priority order within a deadline and concatenates the result.
package prompt

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/registry"
)

// Context carries the information a Provider may need to produce its
// content (session id, in-flight conversation state, arbitrary variables).
type Context struct {
	SessionID string
	Variables map[string]string
}

// Provider contributes one piece of a composed system prompt.
type Provider interface {
	// ID names the provider, surfaced in ProviderResult and used for
	// conflict-free registration.
	ID() string
	// Priority orders providers within a generation; higher runs first.
	Priority() int
	// Enabled reports whether this provider currently participates.
	Enabled() bool
	// Generate produces this provider's content.
	Generate(ctx context.Context, pctx Context) (string, error)
}

// Generator produces dynamic content by name, registered at startup and
// referenced from a DynamicProvider's config.
type Generator func(ctx context.Context, pctx Context, config map[string]string) (string, error)

// GeneratorRegistry holds named Generator functions.
type GeneratorRegistry struct {
	base *registry.BaseRegistry[Generator]
}

// NewGeneratorRegistry creates an empty GeneratorRegistry.
func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{base: registry.NewBaseRegistry[Generator]()}
}

// Register adds a named generator. Re-registering the same name replaces
// the previous generator (built-ins can be overridden by callers).
func (r *GeneratorRegistry) Register(name string, gen Generator) {
	if _, exists := r.base.Get(name); exists {
		r.base.Remove(name)
	}
	r.base.Register(name, gen)
}

// Get looks up a generator by name.
func (r *GeneratorRegistry) Get(name string) (Generator, bool) {
	return r.base.Get(name)
}

// ProviderResult records the outcome of one provider's Generate call.
type ProviderResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a full composition.
type Result struct {
	Content         string
	ProviderResults []ProviderResult
	GenerationTime  time.Duration
}

// Composer resolves enabled providers in descending priority order and
// concatenates their output.
type Composer struct {
	providers          []Provider
	contentSeparator   string
	maxGenerationTime  time.Duration
	failOnProviderError bool
}

// Option configures a Composer.
type Option func(*Composer)

// WithContentSeparator sets the string used to join provider outputs.
// Defaults to two newlines.
func WithContentSeparator(sep string) Option {
	return func(c *Composer) { c.contentSeparator = sep }
}

// WithMaxGenerationTime bounds the total time spent across all providers.
// Defaults to 5 seconds.
func WithMaxGenerationTime(d time.Duration) Option {
	return func(c *Composer) { c.maxGenerationTime = d }
}

// WithFailOnProviderError makes a single provider error abort the whole
// generation instead of being swallowed. Defaults to false (swallow).
func WithFailOnProviderError(fail bool) Option {
	return func(c *Composer) { c.failOnProviderError = fail }
}

// NewComposer creates a Composer over the given providers.
func NewComposer(providers []Provider, opts ...Option) *Composer {
	c := &Composer{
		providers:         providers,
		contentSeparator:  "\n\n",
		maxGenerationTime: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate resolves enabled providers in descending priority order within
// the composer's deadline and concatenates their outputs.
func (c *Composer) Generate(ctx context.Context, pctx Context) (Result, error) {
	start := time.Now()

	ordered := make([]Provider, len(c.providers))
	copy(ordered, c.providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})

	deadlineCtx, cancel := context.WithTimeout(ctx, c.maxGenerationTime)
	defer cancel()

	var parts []string
	var results []ProviderResult

	for _, p := range ordered {
		if !p.Enabled() {
			continue
		}

		select {
		case <-deadlineCtx.Done():
			results = append(results, ProviderResult{ID: p.ID(), Success: false, Error: "generation deadline exceeded"})
			continue
		default:
		}

		content, err := p.Generate(deadlineCtx, pctx)
		if err != nil {
			results = append(results, ProviderResult{ID: p.ID(), Success: false, Error: err.Error()})
			if c.failOnProviderError {
				return Result{ProviderResults: results, GenerationTime: time.Since(start)},
					errs.Wrap(errs.Internal, err, "prompt provider failed").WithComponent(p.ID())
			}
			continue
		}

		results = append(results, ProviderResult{ID: p.ID(), Success: true})
		if content != "" {
			parts = append(parts, content)
		}
	}

	return Result{
		Content:         strings.Join(parts, c.contentSeparator),
		ProviderResults: results,
		GenerationTime:  time.Since(start),
	}, nil
}
