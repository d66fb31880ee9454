package contextmgr

// ProviderKind identifies the shape a formatted message list must take for
// a particular LLM backend.
type ProviderKind string

const (
	// ProviderOpenAI-shaped backends (and Anthropic, which shares OpenAI's
	// system/user/assistant/tool role vocabulary) use messages unchanged.
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	// ProviderGemini renames "assistant" to "model" and "tool" to
	// "function", matching the Gemini content API's role vocabulary.
	ProviderGemini ProviderKind = "gemini"
	ProviderOllama ProviderKind = "ollama"
)

// Formatter rewrites a provider-neutral message list into the shape a
// specific provider expects.
type Formatter func([]Message) []Message

var formatters = map[ProviderKind]Formatter{
	ProviderOpenAI:    identityFormatter,
	ProviderAnthropic: identityFormatter,
	ProviderOllama:    identityFormatter,
	ProviderGemini:    geminiFormatter,
}

// RegisterFormatter installs or overrides the formatter used for kind.
func RegisterFormatter(kind ProviderKind, f Formatter) {
	formatters[kind] = f
}

// formatFor applies the formatter registered for kind, or the identity
// formatter if kind is unknown.
func formatFor(kind ProviderKind, messages []Message) []Message {
	f, ok := formatters[kind]
	if !ok {
		f = identityFormatter
	}
	return f(messages)
}

func identityFormatter(messages []Message) []Message {
	return messages
}

func geminiFormatter(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			msg.Role = "model"
		case RoleTool:
			msg.Role = "function"
		}
		out[i] = msg
	}
	return out
}
