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

// AnthropicProvider speaks the Messages API.
type AnthropicProvider struct {
	cfg    Config
	client *httpclient.Client
}

func NewAnthropic(cfg Config) (*AnthropicProvider, error) {
	return &AnthropicProvider{cfg: cfg, client: newHTTPClient(cfg, httpclient.ParseAnthropicHeaders)}, nil
}

func (p *AnthropicProvider) Name() string         { return p.cfg.Model }
func (p *AnthropicProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *AnthropicProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *AnthropicProvider) Close() error         { return nil }

type anthropicContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
	} `json:"delta,omitempty"`
	ContentBlock *anthropicContent `json:"content_block,omitempty"`
	Usage        *anthropicUsage   `json:"usage,omitempty"`
}

// toAnthropicMessages splits system messages out (Anthropic takes system as
// a top-level field) and converts tool calls/results to content blocks.
func toAnthropicMessages(messages []contextmgr.Message) (string, []anthropicMessage) {
	var system strings.Builder
	var out []anthropicMessage

	for _, m := range messages {
		switch m.Role {
		case contextmgr.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case contextmgr.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content,
				}},
			})
		default:
			var blocks []anthropicContent
			if m.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicMessage{Role: m.Role, Content: blocks})
		}
	}
	return system.String(), out
}

func toAnthropicTools(tools []toolmgr.Descriptor) []anthropicTool {
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: functionSchema(t)})
	}
	return out
}

func (p *AnthropicProvider) buildRequest(messages []contextmgr.Message, tools []toolmgr.Descriptor, stream bool) anthropicRequest {
	system, msgs := toAnthropicMessages(messages)
	return anthropicRequest{
		Model: p.cfg.Model, Messages: msgs, System: system,
		MaxTokens: p.cfg.MaxTokens, Temperature: p.cfg.Temperature,
		Tools: toAnthropicTools(tools), Stream: stream,
	}
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal request").WithComponent("llm.anthropic")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build request").WithComponent("llm.anthropic")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "call anthropic").WithComponent("llm.anthropic")
	}
	return resp, nil
}

func parseAnthropicResult(content []anthropicContent) (string, []contextmgr.ToolCall) {
	var text strings.Builder
	var calls []contextmgr.ToolCall
	for _, c := range content {
		switch c.Type {
		case "text":
			text.WriteString(c.Text)
		case "tool_use":
			calls = append(calls, contextmgr.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Input})
		}
	}
	return text.String(), calls
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, false))
	if err != nil {
		return "", nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "read response").WithComponent("llm.anthropic")
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "decode response").WithComponent("llm.anthropic")
	}
	if parsed.Error != nil {
		return "", nil, 0, errs.Newf(errs.Provider, "anthropic: %s", parsed.Error.Message).WithComponent("llm.anthropic")
	}

	text, calls := parseAnthropicResult(parsed.Content)
	return text, calls, parsed.Usage.InputTokens + parsed.Usage.OutputTokens, nil
}

func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan StreamChunk, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		blocks := map[int]*anthropicContent{}
		tokens := 0
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var evt anthropicStreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				continue
			}

			switch evt.Type {
			case "content_block_start":
				if evt.ContentBlock != nil {
					cp := *evt.ContentBlock
					blocks[evt.Index] = &cp
				}
			case "content_block_delta":
				if evt.Delta == nil {
					continue
				}
				if evt.Delta.Text != "" {
					ch <- StreamChunk{Type: "text", Text: evt.Delta.Text}
				}
				if evt.Delta.PartialJSON != "" {
					if b, ok := blocks[evt.Index]; ok {
						b.Content += evt.Delta.PartialJSON
					}
				}
			case "content_block_stop":
				if b, ok := blocks[evt.Index]; ok && b.Type == "tool_use" {
					var args map[string]any
					_ = json.Unmarshal([]byte(b.Content), &args)
					ch <- StreamChunk{Type: "tool_call", ToolCall: &contextmgr.ToolCall{ID: b.ID, Name: b.Name, Arguments: args, RawArgs: b.Content}}
				}
			case "message_delta":
				if evt.Usage != nil {
					tokens = evt.Usage.InputTokens + evt.Usage.OutputTokens
				}
			case "message_stop":
				ch <- StreamChunk{Type: "done", Tokens: tokens}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Type: "error", Error: fmt.Errorf("anthropic stream: %w", err)}
		}
	}()

	return ch, nil
}

var _ Provider = (*AnthropicProvider)(nil)
