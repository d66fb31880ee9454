package reasoning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// stubResponse is one queued Generate() result.
type stubResponse struct {
	text      string
	toolCalls []contextmgr.ToolCall
	err       error
}

type stubProvider struct {
	responses []stubResponse
	calls     int
}

func (p *stubProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	if p.calls >= len(p.responses) {
		return "done", nil, 0, nil
	}
	r := p.responses[p.calls]
	p.calls++
	return r.text, r.toolCalls, 0, r.err
}

func (p *stubProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (p *stubProvider) Name() string         { return "stub" }
func (p *stubProvider) MaxTokens() int       { return 4096 }
func (p *stubProvider) Temperature() float64 { return 0.7 }
func (p *stubProvider) Close() error         { return nil }

var _ llm.Provider = (*stubProvider)(nil)

func newManager(t *testing.T) *contextmgr.Manager {
	t.Helper()
	mgr, err := contextmgr.NewManager(contextmgr.Config{}, nil)
	require.NoError(t, err)
	return mgr
}

func newEchoTool(t *testing.T, name string, fn func(ctx context.Context, args map[string]any, sessionID string) (toolmgr.Result, error)) toolmgr.Tool {
	t.Helper()
	tool, err := toolmgr.Func(name, "echoes back", func(ctx context.Context, args struct {
		Text string `json:"text"`
	}, sessionID string) (toolmgr.Result, error) {
		return fn(ctx, map[string]any{"text": args.Text}, sessionID)
	})
	require.NoError(t, err)
	return tool
}

func TestLoopRunsToolCallThenFinalAnswer(t *testing.T) {
	provider := &stubProvider{responses: []stubResponse{
		{toolCalls: []contextmgr.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "hi"}}}},
		{text: "the tool said hi back to you just now"},
	}}

	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	require.NoError(t, registry.RegisterInternal(newEchoTool(t, "echo", func(ctx context.Context, args map[string]any, sessionID string) (toolmgr.Result, error) {
		return toolmgr.Result{Success: true, Content: "hi back"}, nil
	})))

	loop := NewLoop(Config{}, provider, registry, newManager(t))
	text, err := loop.Run(context.Background(), "s1", "say hi", "")
	require.NoError(t, err)
	assert.Equal(t, "the tool said hi back to you just now", text)

	raw := loop.context.GetRawMessages("s1")
	require.Len(t, raw, 4) // user, assistant+tool_call, tool result, final assistant
	assert.Equal(t, contextmgr.RoleTool, raw[2].Role)
	assert.Equal(t, "hi back", raw[2].Content)
}

func TestLoopPrefersSubstantialTextOverToolCall(t *testing.T) {
	provider := &stubProvider{responses: []stubResponse{
		{text: "here is a complete answer that does not need any tool call at all",
			toolCalls: []contextmgr.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "hi"}}}},
	}}

	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	loop := NewLoop(Config{}, provider, registry, newManager(t))

	text, err := loop.Run(context.Background(), "s1", "hello", "")
	require.NoError(t, err)
	assert.Contains(t, text, "complete answer")
	assert.Equal(t, 1, provider.calls)
}

func TestLoopRetriesThenSucceeds(t *testing.T) {
	provider := &stubProvider{responses: []stubResponse{
		{err: errors.New("rate limited")},
		{text: "finally answered"},
	}}

	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	loop := NewLoop(Config{RetryBaseDelay: time.Millisecond}, provider, registry, newManager(t))

	text, err := loop.Run(context.Background(), "s1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "finally answered", text)
	assert.Equal(t, 2, provider.calls)
}

func TestLoopPropagatesErrorAfterExhaustingRetries(t *testing.T) {
	provider := &stubProvider{responses: []stubResponse{
		{err: errors.New("down")}, {err: errors.New("down")}, {err: errors.New("down")}, {err: errors.New("down")},
	}}

	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	loop := NewLoop(Config{MaxRetries: 3, RetryBaseDelay: time.Millisecond}, provider, registry, newManager(t))

	_, err := loop.Run(context.Background(), "s1", "hello", "")
	require.Error(t, err)
	assert.Equal(t, 4, provider.calls)
}

func TestLoopHitsMaxIterationsCap(t *testing.T) {
	responses := make([]stubResponse, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, stubResponse{toolCalls: []contextmgr.ToolCall{{ID: "c", Name: "echo", Arguments: map[string]any{"text": "x"}}}})
	}
	provider := &stubProvider{responses: responses}

	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	require.NoError(t, registry.RegisterInternal(newEchoTool(t, "echo", func(ctx context.Context, args map[string]any, sessionID string) (toolmgr.Result, error) {
		return toolmgr.Result{Success: true, Content: "ok"}, nil
	})))

	loop := NewLoop(Config{MaxIterations: 3}, provider, registry, newManager(t))
	text, err := loop.Run(context.Background(), "s1", "loop forever", "")
	require.NoError(t, err)
	assert.Equal(t, maxIterationsText, text)
}

func TestDispatchToolCommitsErrorPayloadOnUnparsableArguments(t *testing.T) {
	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	mgr := newManager(t)
	loop := NewLoop(Config{}, &stubProvider{}, registry, mgr)

	loop.dispatchTool(context.Background(), "s1", contextmgr.ToolCall{ID: "c1", Name: "echo", RawArgs: "{not json"}, nil)

	raw := mgr.GetRawMessages("s1")
	require.Len(t, raw, 1)
	assert.Contains(t, raw[0].Content, "failed to parse arguments")
}

func TestDispatchToolCommitsErrorPayloadOnExecutionFailure(t *testing.T) {
	registry := toolmgr.NewRegistry(toolmgr.ConflictPrefix, 0)
	mgr := newManager(t)
	loop := NewLoop(Config{}, &stubProvider{}, registry, mgr)

	loop.dispatchTool(context.Background(), "s1", contextmgr.ToolCall{ID: "c1", Name: "missing"}, nil)

	raw := mgr.GetRawMessages("s1")
	require.Len(t, raw, 1)
	assert.Contains(t, raw[0].Content, "error")
}
