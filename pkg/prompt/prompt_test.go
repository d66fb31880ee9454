package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposerOrdersByPriorityDescending(t *testing.T) {
	low := NewStaticProvider("low", 1, "low", nil)
	high := NewStaticProvider("high", 10, "high", nil)
	mid := NewStaticProvider("mid", 5, "mid", nil)

	c := NewComposer([]Provider{low, high, mid}, WithContentSeparator(" "))
	result, err := c.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "high mid low", result.Content)
	assert.Len(t, result.ProviderResults, 3)
}

func TestComposerSkipsDisabledProviders(t *testing.T) {
	a := NewStaticProvider("a", 1, "a", nil)
	b := NewStaticProvider("b", 2, "b", nil)
	b.SetEnabled(false)

	c := NewComposer([]Provider{a, b})
	result, err := c.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "a", result.Content)
	assert.Len(t, result.ProviderResults, 1)
}

type erroringProvider struct {
	id string
}

func (p *erroringProvider) ID() string     { return p.id }
func (p *erroringProvider) Priority() int  { return 1 }
func (p *erroringProvider) Enabled() bool  { return true }
func (p *erroringProvider) Generate(ctx context.Context, pctx Context) (string, error) {
	return "", assertErr("boom")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestComposerSwallowsProviderErrorByDefault(t *testing.T) {
	a := NewStaticProvider("a", 2, "a", nil)
	e := &erroringProvider{id: "broken"}

	c := NewComposer([]Provider{a, e})
	result, err := c.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "a", result.Content)
	assert.Len(t, result.ProviderResults, 2)

	var brokenResult ProviderResult
	for _, r := range result.ProviderResults {
		if r.ID == "broken" {
			brokenResult = r
		}
	}
	assert.False(t, brokenResult.Success)
	assert.NotEmpty(t, brokenResult.Error)
}

func TestComposerAbortsOnProviderErrorWhenConfigured(t *testing.T) {
	e := &erroringProvider{id: "broken"}
	c := NewComposer([]Provider{e}, WithFailOnProviderError(true))
	_, err := c.Generate(context.Background(), Context{})
	assert.Error(t, err)
}

func TestStaticProviderSubstitutesVariables(t *testing.T) {
	p := NewStaticProvider("s", 1, "Hello {name}, today is {day}", map[string]string{"name": "Ada"})
	content, err := p.Generate(context.Background(), Context{Variables: map[string]string{"day": "Monday"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, today is Monday", content)
}

func TestStaticProviderLeavesUnresolvedPlaceholders(t *testing.T) {
	p := NewStaticProvider("s", 1, "Hello {missing}", nil)
	content, err := p.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "Hello {missing}", content)
}

func TestDynamicProviderInvokesGenerator(t *testing.T) {
	reg := NewGeneratorRegistry()
	reg.Register("shout", func(ctx context.Context, pctx Context, config map[string]string) (string, error) {
		return config["text"] + "!!!", nil
	})

	p := NewDynamicProvider("d", 1, "shout", map[string]string{"text": "hi"}, "", reg)
	content, err := p.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "hi!!!", content)
}

func TestDynamicProviderAppliesTemplate(t *testing.T) {
	reg := NewGeneratorRegistry()
	reg.Register("echo", func(ctx context.Context, pctx Context, config map[string]string) (string, error) {
		return "value", nil
	})

	p := NewDynamicProvider("d", 1, "echo", nil, "[{{content}}]", reg)
	content, err := p.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "[value]", content)
}

func TestDynamicProviderUnknownGeneratorErrors(t *testing.T) {
	reg := NewGeneratorRegistry()
	p := NewDynamicProvider("d", 1, "missing", nil, "", reg)
	_, err := p.Generate(context.Background(), Context{})
	assert.Error(t, err)
}

func TestFileProviderReadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("static file content"), 0o644))

	p, err := NewFileProvider("f", 1, path, nil, false)
	require.NoError(t, err)
	defer p.Close()

	content, err := p.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "static file content", content)
}

func TestFileProviderWatchesForChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("version one"), 0o644))

	p, err := NewFileProvider("f", 1, path, nil, true)
	require.NoError(t, err)
	defer p.Close()

	content, err := p.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "version one", content)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))

	assert.Eventually(t, func() bool {
		content, _ := p.Generate(context.Background(), Context{})
		return content == "version two"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBuiltinGenerators(t *testing.T) {
	reg := NewGeneratorRegistry()
	RegisterBuiltins(reg)

	t.Run("timestamp", func(t *testing.T) {
		gen, ok := reg.Get("timestamp")
		require.True(t, ok)
		out, err := gen(context.Background(), Context{}, map[string]string{"format": "2006"})
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})

	t.Run("session-context", func(t *testing.T) {
		gen, ok := reg.Get("session-context")
		require.True(t, ok)
		out, err := gen(context.Background(), Context{SessionID: "abc"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Session: abc", out)

		out, err = gen(context.Background(), Context{}, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("memory-context", func(t *testing.T) {
		gen, ok := reg.Get("memory-context")
		require.True(t, ok)
		out, err := gen(context.Background(), Context{Variables: map[string]string{"memory_context": "fact one"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Relevant memory:\nfact one", out)
	})

	t.Run("environment", func(t *testing.T) {
		gen, ok := reg.Get("environment")
		require.True(t, ok)
		os.Setenv("MEMENTO_PROMPT_TEST_VAR", "envval")
		defer os.Unsetenv("MEMENTO_PROMPT_TEST_VAR")
		out, err := gen(context.Background(), Context{}, map[string]string{"name": "MEMENTO_PROMPT_TEST_VAR", "label": "Env"})
		require.NoError(t, err)
		assert.Equal(t, "Env: envval", out)
	})

	t.Run("conditional", func(t *testing.T) {
		gen, ok := reg.Get("conditional")
		require.True(t, ok)
		out, err := gen(context.Background(), Context{Variables: map[string]string{"flag": "on"}}, map[string]string{"variable": "flag", "equals": "on", "content": "shown"})
		require.NoError(t, err)
		assert.Equal(t, "shown", out)

		out, err = gen(context.Background(), Context{Variables: map[string]string{"flag": "off"}}, map[string]string{"variable": "flag", "equals": "on", "content": "shown"})
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestGeneratorRegistryOverrideReplaces(t *testing.T) {
	reg := NewGeneratorRegistry()
	reg.Register("x", func(ctx context.Context, pctx Context, config map[string]string) (string, error) {
		return "first", nil
	})
	reg.Register("x", func(ctx context.Context, pctx Context, config map[string]string) (string, error) {
		return "second", nil
	})

	gen, ok := reg.Get("x")
	require.True(t, ok)
	out, err := gen(context.Background(), Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}
