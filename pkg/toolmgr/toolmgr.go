// Package toolmgr provides the unified tool registry: a single place
// internal (compiled-in) tools and external tool-server tools are
// registered, conflict-resolved, and executed under a per-call timeout.
package toolmgr

import (
	"context"
)

// Tool is anything the registry can execute by name.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON Schema for the tool's arguments, or nil if
	// the tool takes none.
	Schema() map[string]any
	Execute(ctx context.Context, args map[string]any, sessionID string) (Result, error)
}

// Result is the outcome of one tool execution.
type Result struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Descriptor is the registry's public view of a registered tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
	Internal    bool           `json:"internal"`
	Source      string         `json:"source"`
}

// ProviderKind identifies the shape GetToolsForProvider emits.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
	ProviderOllama    ProviderKind = "ollama"
)
