package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/httpclient"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// OpenAIProvider speaks the Chat Completions API.
type OpenAIProvider struct {
	cfg    Config
	client *httpclient.Client
}

func NewOpenAI(cfg Config) (*OpenAIProvider, error) {
	return &OpenAIProvider{cfg: cfg, client: newHTTPClient(cfg, httpclient.ParseOpenAIHeaders)}, nil
}

func (p *OpenAIProvider) Name() string         { return p.cfg.Model }
func (p *OpenAIProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OpenAIProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OpenAIProvider) Close() error         { return nil }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIFunctionSpec `json:"function"`
}

type openAIFunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	Delta        openAIMessage `json:"delta"`
	FinishReason string        `json:"finish_reason"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func toOpenAIMessages(messages []contextmgr.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		om := openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			args := tc.RawArgs
			if args == "" {
				if b, err := json.Marshal(tc.Arguments); err == nil {
					args = string(b)
				}
			}
			om.ToolCalls = append(om.ToolCalls, openAIToolCall{
				ID: tc.ID, Type: "function",
				Function: openAIFunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []toolmgr.Descriptor) []openAITool {
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIFunctionSpec{
				Name: t.Name, Description: t.Description, Parameters: functionSchema(t),
			},
		})
	}
	return out
}

func parseOpenAIToolCalls(calls []openAIToolCall) []contextmgr.ToolCall {
	out := make([]contextmgr.ToolCall, 0, len(calls))
	for _, c := range calls {
		var args map[string]any
		_ = json.Unmarshal([]byte(c.Function.Arguments), &args)
		out = append(out, contextmgr.ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: args, RawArgs: c.Function.Arguments})
	}
	return out
}

func (p *OpenAIProvider) buildRequest(messages []contextmgr.Message, tools []toolmgr.Descriptor, stream bool) openAIRequest {
	return openAIRequest{
		Model:       p.cfg.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Tools:       toOpenAITools(tools),
		Stream:      stream,
	}
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body openAIRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal request").WithComponent("llm.openai")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build request").WithComponent("llm.openai")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "call openai").WithComponent("llm.openai")
	}
	return resp, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, false))
	if err != nil {
		return "", nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "read response").WithComponent("llm.openai")
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "decode response").WithComponent("llm.openai")
	}
	if parsed.Error != nil {
		return "", nil, 0, errs.Newf(errs.Provider, "openai: %s", parsed.Error.Message).WithComponent("llm.openai")
	}
	if len(parsed.Choices) == 0 {
		return "", nil, 0, nil
	}

	choice := parsed.Choices[0]
	return choice.Message.Content, parseOpenAIToolCalls(choice.Message.ToolCalls), parsed.Usage.TotalTokens, nil
}

func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan StreamChunk, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		pending := map[int]*contextmgr.ToolCall{}
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				ch <- StreamChunk{Type: "done"}
				return
			}

			var chunk openAIResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				ch <- StreamChunk{Type: "text", Text: delta.Content}
			}
			for i, tc := range delta.ToolCalls {
				existing, ok := pending[i]
				if !ok {
					existing = &contextmgr.ToolCall{ID: tc.ID, Name: tc.Function.Name}
					pending[i] = existing
				}
				existing.RawArgs += tc.Function.Arguments
			}
			if chunk.Choices[0].FinishReason != "" {
				for _, tc := range pending {
					var args map[string]any
					_ = json.Unmarshal([]byte(tc.RawArgs), &args)
					tc.Arguments = args
					ch <- StreamChunk{Type: "tool_call", ToolCall: tc}
				}
				ch <- StreamChunk{Type: "done", Tokens: chunk.Usage.TotalTokens}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Type: "error", Error: fmt.Errorf("openai stream: %w", err)}
		}
	}()

	return ch, nil
}

var _ Provider = (*OpenAIProvider)(nil)
