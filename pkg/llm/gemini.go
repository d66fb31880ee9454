package llm

import (
	"context"

	"google.golang.org/genai"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// GeminiProvider wraps the official google.golang.org/genai SDK.
type GeminiProvider struct {
	cfg    Config
	client *genai.Client
}

func NewGemini(cfg Config) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "create gemini client").WithComponent("llm.gemini")
	}
	return &GeminiProvider{cfg: cfg, client: client}, nil
}

func (p *GeminiProvider) Name() string         { return p.cfg.Model }
func (p *GeminiProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *GeminiProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *GeminiProvider) Close() error         { return nil }

// toGeminiContents separates out the system message (Gemini takes it as a
// top-level SystemInstruction) and maps the rest role-for-role: assistant
// becomes "model", tool results become function responses.
func toGeminiContents(messages []contextmgr.Message) (contents []*genai.Content, systemInstruction *genai.Content) {
	for _, m := range messages {
		switch m.Role {
		case contextmgr.RoleSystem:
			if m.Content == "" {
				continue
			}
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case contextmgr.RoleTool:
			var response map[string]any
			if len(m.Content) > 0 {
				response = map[string]any{"result": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role:  "function",
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: m.ToolCallID, Name: m.Name, Response: response}}},
			})
		default:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments}})
			}
			if len(parts) == 0 {
				continue
			}
			role := "user"
			if m.Role == contextmgr.RoleAssistant {
				role = "model"
			}
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents, systemInstruction
}

func toGeminiTools(tools []toolmgr.Descriptor) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name: t.Name, Description: t.Description, Parameters: toGenaiSchema(functionSchema(t)),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGenaiSchema converts a flat JSON Schema map, as toolmgr produces it,
// into the genai SDK's typed Schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func (p *GeminiProvider) buildConfig(systemInstruction *genai.Content, tools []toolmgr.Descriptor) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(p.cfg.Temperature)),
		MaxOutputTokens:   int32(p.cfg.MaxTokens),
		Tools:             toGeminiTools(tools),
	}
	return cfg
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (string, []contextmgr.ToolCall) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var text string
	var calls []contextmgr.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			calls = append(calls, contextmgr.ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args})
		}
	}
	return text, calls
}

func geminiUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata == nil {
		return 0
	}
	return int(resp.UsageMetadata.TotalTokenCount)
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	contents, systemInstruction := toGeminiContents(messages)
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, p.buildConfig(systemInstruction, tools))
	if err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "generate").WithComponent("llm.gemini")
	}
	text, calls := parseGeminiResponse(resp)
	return text, calls, geminiUsage(resp), nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan StreamChunk, error) {
	contents, systemInstruction := toGeminiContents(messages)
	config := p.buildConfig(systemInstruction, tools)

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		tokens := 0
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.cfg.Model, contents, config) {
			if err != nil {
				ch <- StreamChunk{Type: "error", Error: err}
				return
			}
			if resp.UsageMetadata != nil {
				tokens = int(resp.UsageMetadata.TotalTokenCount)
			}
			text, calls := parseGeminiResponse(resp)
			if text != "" {
				ch <- StreamChunk{Type: "text", Text: text}
			}
			for i := range calls {
				ch <- StreamChunk{Type: "tool_call", ToolCall: &calls[i]}
			}
		}
		ch <- StreamChunk{Type: "done", Tokens: tokens}
	}()

	return ch, nil
}

var _ Provider = (*GeminiProvider)(nil)
