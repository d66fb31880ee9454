package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/embedding"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/storage"
	"github.com/kadirpekel/memento/pkg/vector"
)

func baseConfig() Config {
	return Config{
		Storage: storage.ProviderConfig{Type: storage.ProviderMemory},
		Vector:  vector.ProviderConfig{Type: vector.ProviderChromem},
		LLM:     llm.Config{Type: "ollama"},
	}
}

func localEmbeddingConfig() *embedding.ProviderConfig {
	return &embedding.ProviderConfig{
		Type:  embedding.ProviderLocal,
		Local: &embedding.HTTPConfig{Model: "nomic-embed-text", Host: "http://localhost:11434", Dimension: 8},
	}
}

func toolNames(t *testing.T, built *Built) []string {
	t.Helper()
	descriptors := built.Tools.ListTools()
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

func TestBuildWithoutEmbeddingSkipsMemoryAndReflection(t *testing.T) {
	built, err := Build(context.Background(), baseConfig())
	require.NoError(t, err)

	assert.NotNil(t, built.Runtime)
	assert.NotNil(t, built.Sessions)
	assert.NotNil(t, built.Loop)
	assert.Nil(t, built.Vectors)
	assert.Nil(t, built.Embedder)
	assert.Nil(t, built.MemoryEng)
	assert.Nil(t, built.ReflectEng)

	assert.Empty(t, toolNames(t, built), "no builtin tools should be registered without an embedding provider")
}

func TestBuildWithEmbeddingRegistersMemoryToolsOnly(t *testing.T) {
	cfg := baseConfig()
	cfg.Embedding = localEmbeddingConfig()

	built, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotNil(t, built.Vectors)
	assert.NotNil(t, built.Embedder)
	assert.NotNil(t, built.MemoryEng)
	assert.Nil(t, built.ReflectEng, "reflection stays disabled without a ReflectionLLM")

	names := toolNames(t, built)
	assert.Contains(t, names, "memory-search")
	assert.Contains(t, names, "extract-and-operate-memory")
	assert.Contains(t, names, "reasoning-extract")
	assert.NotContains(t, names, "reasoning-evaluate")
	assert.NotContains(t, names, "reasoning-store")
}

func TestBuildWithReflectionLLMRegistersAllBuiltinTools(t *testing.T) {
	cfg := baseConfig()
	cfg.Embedding = localEmbeddingConfig()
	reflectionLLM := llm.Config{Type: "ollama"}
	cfg.ReflectionLLM = &reflectionLLM

	built, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotNil(t, built.ReflectEng)

	names := toolNames(t, built)
	assert.Contains(t, names, "reasoning-evaluate")
	assert.Contains(t, names, "reasoning-store")
}
