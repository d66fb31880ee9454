// Package llm provides LLM provider clients: OpenAI, Anthropic, and Ollama
// speak their REST APIs directly over pkg/httpclient; Gemini wraps the
// official google.golang.org/genai SDK. All four implement the same
// Provider contract, consuming pkg/contextmgr's Message/ToolCall types
// directly rather than redefining their own.
package llm

import (
	"context"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// StreamChunk is one increment of a streaming generation.
type StreamChunk struct {
	Type     string // "text", "tool_call", "done", "error"
	Text     string
	ToolCall *contextmgr.ToolCall
	Tokens   int
	Error    error
}

// Provider is a chat-completion backend.
type Provider interface {
	// Generate performs a non-streaming request and returns the assistant
	// text, any tool calls it requested, and the token count reported by
	// the backend (0 if it reports none).
	Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (text string, toolCalls []contextmgr.ToolCall, tokens int, err error)
	GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan StreamChunk, error)

	Name() string
	MaxTokens() int
	Temperature() float64
	Close() error
}
