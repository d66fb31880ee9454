package prompt

import (
	"context"
	"regexp"
)

// placeholderRegex matches {name} style placeholders in static and
// file-based provider content.
var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// substituteVariables replaces {name} placeholders with values from vars,
// falling back to pctx.Variables, leaving unresolved placeholders as-is.
func substituteVariables(content string, vars map[string]string, pctx Context) string {
	return placeholderRegex.ReplaceAllStringFunc(content, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := pctx.Variables[name]; ok {
			return v
		}
		return match
	})
}

// StaticProvider returns fixed content with variable substitution applied.
type StaticProvider struct {
	id       string
	priority int
	enabled  bool
	content  string
	vars     map[string]string
}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider(id string, priority int, content string, vars map[string]string) *StaticProvider {
	return &StaticProvider{id: id, priority: priority, enabled: true, content: content, vars: vars}
}

func (p *StaticProvider) ID() string       { return p.id }
func (p *StaticProvider) Priority() int    { return p.priority }
func (p *StaticProvider) Enabled() bool    { return p.enabled }
func (p *StaticProvider) SetEnabled(v bool) { p.enabled = v }

func (p *StaticProvider) Generate(ctx context.Context, pctx Context) (string, error) {
	return substituteVariables(p.content, p.vars, pctx), nil
}

var _ Provider = (*StaticProvider)(nil)
