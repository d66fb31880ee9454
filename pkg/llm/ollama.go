package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/httpclient"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// OllamaProvider speaks the local /api/chat endpoint.
type OllamaProvider struct {
	cfg    Config
	client *httpclient.Client
}

func NewOllama(cfg Config) (*OllamaProvider, error) {
	return &OllamaProvider{cfg: cfg, client: newHTTPClient(cfg, nil)}, nil
}

func (p *OllamaProvider) Name() string         { return p.cfg.Model }
func (p *OllamaProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OllamaProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OllamaProvider) Close() error         { return nil }

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`

	EvalCount     int `json:"eval_count"`
	PromptEvalCnt int `json:"prompt_eval_count"`
}

func toOllamaMessages(messages []contextmgr.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var otc ollamaToolCall
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func toOllamaTools(tools []toolmgr.Descriptor) []ollamaTool {
	out := make([]ollamaTool, 0, len(tools))
	for _, t := range tools {
		var ot ollamaTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = functionSchema(t)
		out = append(out, ot)
	}
	return out
}

func (p *OllamaProvider) buildRequest(messages []contextmgr.Message, tools []toolmgr.Descriptor, stream bool) ollamaRequest {
	return ollamaRequest{
		Model: p.cfg.Model, Messages: toOllamaMessages(messages), Stream: stream,
		Tools: toOllamaTools(tools), Options: &ollamaOptions{Temperature: p.cfg.Temperature},
	}
}

func (p *OllamaProvider) doRequest(ctx context.Context, body ollamaRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal request").WithComponent("llm.ollama")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build request").WithComponent("llm.ollama")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "call ollama").WithComponent("llm.ollama")
	}
	return resp, nil
}

func parseOllamaToolCalls(calls []ollamaToolCall) []contextmgr.ToolCall {
	out := make([]contextmgr.ToolCall, 0, len(calls))
	for i, c := range calls {
		out = append(out, contextmgr.ToolCall{ID: fmt.Sprintf("ollama-%d", i), Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	return out
}

func (p *OllamaProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, false))
	if err != nil {
		return "", nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "read response").WithComponent("llm.ollama")
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", nil, 0, errs.Wrap(errs.Provider, err, "decode response").WithComponent("llm.ollama")
	}
	if parsed.Error != "" {
		return "", nil, 0, errs.Newf(errs.Provider, "ollama: %s", parsed.Error).WithComponent("llm.ollama")
	}

	return parsed.Message.Content, parseOllamaToolCalls(parsed.Message.ToolCalls), parsed.EvalCount + parsed.PromptEvalCnt, nil
}

func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan StreamChunk, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				ch <- StreamChunk{Type: "error", Error: fmt.Errorf("ollama: %s", chunk.Error)}
				return
			}
			if chunk.Message.Content != "" {
				ch <- StreamChunk{Type: "text", Text: chunk.Message.Content}
			}
			for _, tc := range parseOllamaToolCalls(chunk.Message.ToolCalls) {
				tc := tc
				ch <- StreamChunk{Type: "tool_call", ToolCall: &tc}
			}
			if chunk.Done {
				ch <- StreamChunk{Type: "done", Tokens: chunk.EvalCount + chunk.PromptEvalCnt}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Type: "error", Error: fmt.Errorf("ollama stream: %w", err)}
		}
	}()

	return ch, nil
}

var _ Provider = (*OllamaProvider)(nil)
