package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
)

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{Type: "openai"}
	cfg.SetDefaults()
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Host)
	assert.Equal(t, 4096, cfg.MaxTokens)
}

func TestConfigValidateRejectsUnknownType(t *testing.T) {
	cfg := Config{Type: "carrier-pigeon"}
	cfg.SetDefaults()
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRequiresAPIKeyExceptOllama(t *testing.T) {
	cfg := Config{Type: "openai"}
	cfg.SetDefaults()
	require.Error(t, cfg.Validate())

	ollamaCfg := Config{Type: "ollama"}
	ollamaCfg.SetDefaults()
	require.NoError(t, ollamaCfg.Validate())
}

func TestRegistryCreateFromConfigRegistersProvider(t *testing.T) {
	reg := NewRegistry()
	provider, err := reg.CreateFromConfig("local", Config{Type: "ollama"})
	require.NoError(t, err)
	assert.NotNil(t, provider)

	got, err := reg.GetProvider("local")
	require.NoError(t, err)
	assert.Equal(t, provider, got)
}

func TestRegistryGetProviderUnknownErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.GetProvider("missing")
	require.Error(t, err)
}

func TestOpenAIGenerateParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "search",
							"arguments": `{"query":"go"}`,
						},
					}},
				},
			}},
			"usage": map[string]any{"total_tokens": 42},
		})
	}))
	defer srv.Close()

	cfg := Config{Type: "openai", APIKey: "k", Host: srv.URL}
	cfg.SetDefaults()
	provider, err := NewOpenAI(cfg)
	require.NoError(t, err)

	text, calls, tokens, err := provider.Generate(context.Background(), []contextmgr.Message{{Role: contextmgr.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, "go", calls[0].Arguments["query"])
	assert.Equal(t, 42, tokens)
}

func TestOpenAIGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	cfg := Config{Type: "openai", APIKey: "bad", Host: srv.URL}
	cfg.SetDefaults()
	provider, err := NewOpenAI(cfg)
	require.NoError(t, err)

	_, _, _, err = provider.Generate(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestAnthropicGenerateParsesTextAndToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_1", "name": "search", "input": map[string]any{"query": "go"}},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	cfg := Config{Type: "anthropic", APIKey: "k", Host: srv.URL}
	cfg.SetDefaults()
	provider, err := NewAnthropic(cfg)
	require.NoError(t, err)

	text, calls, tokens, err := provider.Generate(context.Background(), []contextmgr.Message{
		{Role: contextmgr.RoleSystem, Content: "be terse"},
		{Role: contextmgr.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "let me check", text)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, 15, tokens)
}

func TestOllamaGenerateParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello there"},
			"done":              true,
			"eval_count":        5,
			"prompt_eval_count": 3,
		})
	}))
	defer srv.Close()

	cfg := Config{Type: "ollama", Host: srv.URL}
	cfg.SetDefaults()
	provider, err := NewOllama(cfg)
	require.NoError(t, err)

	text, _, tokens, err := provider.Generate(context.Background(), []contextmgr.Message{{Role: contextmgr.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 8, tokens)
}

func TestToAnthropicMessagesSplitsSystemOut(t *testing.T) {
	system, msgs := toAnthropicMessages([]contextmgr.Message{
		{Role: contextmgr.RoleSystem, Content: "be terse"},
		{Role: contextmgr.RoleUser, Content: "hi"},
	})
	assert.Equal(t, "be terse", system)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}
