package prompt

import (
	"context"
	"strings"

	"github.com/kadirpekel/memento/pkg/errs"
)

// DynamicProvider invokes a named, registered Generator and renders its
// output through an optional template with a single {{content}} slot.
type DynamicProvider struct {
	id              string
	priority        int
	enabled         bool
	generatorName   string
	generatorConfig map[string]string
	template        string
	generators      *GeneratorRegistry
}

// NewDynamicProvider creates a DynamicProvider that resolves generatorName
// against generators at Generate time (so later registrations are picked
// up without reconstructing the provider).
func NewDynamicProvider(id string, priority int, generatorName string, generatorConfig map[string]string, template string, generators *GeneratorRegistry) *DynamicProvider {
	return &DynamicProvider{
		id:              id,
		priority:        priority,
		enabled:         true,
		generatorName:   generatorName,
		generatorConfig: generatorConfig,
		template:        template,
		generators:      generators,
	}
}

func (p *DynamicProvider) ID() string        { return p.id }
func (p *DynamicProvider) Priority() int     { return p.priority }
func (p *DynamicProvider) Enabled() bool     { return p.enabled }
func (p *DynamicProvider) SetEnabled(v bool) { p.enabled = v }

func (p *DynamicProvider) Generate(ctx context.Context, pctx Context) (string, error) {
	gen, ok := p.generators.Get(p.generatorName)
	if !ok {
		return "", errs.Newf(errs.NotFound, "generator %q is not registered", p.generatorName).WithComponent("DynamicProvider")
	}

	content, err := gen(ctx, pctx, p.generatorConfig)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "generator failed").WithComponent("DynamicProvider")
	}

	if p.template == "" {
		return content, nil
	}
	return strings.ReplaceAll(p.template, "{{content}}", content), nil
}

var _ Provider = (*DynamicProvider)(nil)
