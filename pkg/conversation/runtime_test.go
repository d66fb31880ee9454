package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/reasoning"
	"github.com/kadirpekel/memento/pkg/session"
	"github.com/kadirpekel/memento/pkg/storage"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

type stubProvider struct{ text string }

func (p stubProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	return p.text, nil, 0, nil
}
func (p stubProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}
func (p stubProvider) Name() string         { return "stub" }
func (p stubProvider) MaxTokens() int       { return 4096 }
func (p stubProvider) Temperature() float64 { return 0.7 }
func (p stubProvider) Close() error         { return nil }

var _ llm.Provider = stubProvider{}

func newTestRuntime(t *testing.T, responseText string) *Runtime {
	t.Helper()

	store := storage.NewMemoryStore()
	require.NoError(t, store.Connect(context.Background()))

	ctxmgr, err := contextmgr.NewManager(contextmgr.Config{}, nil)
	require.NoError(t, err)

	sessions, err := session.NewManager(session.Config{}, store, ctxmgr)
	require.NoError(t, err)

	tools := toolmgr.NewRegistry(toolmgr.ConflictPrefix, time.Second)
	loop := reasoning.NewLoop(reasoning.Config{}, stubProvider{text: responseText}, tools, ctxmgr)

	return NewRuntime(sessions, loop, nil, nil)
}

func TestRunGeneratesSessionAndReturnsResponse(t *testing.T) {
	rt := newTestRuntime(t, "hello back")

	resp, err := rt.Run(context.Background(), "", "hello", "", Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "hello back", resp.Text)
}

func TestRunReusesExistingSession(t *testing.T) {
	rt := newTestRuntime(t, "ack")

	first, err := rt.Run(context.Background(), "my-session", "hi", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "my-session", first.SessionID)

	second, err := rt.Run(context.Background(), "my-session", "again", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "my-session", second.SessionID)

	messages, _, err := rt.GetHistory(context.Background(), "my-session")
	require.NoError(t, err)
	assert.Len(t, messages, 4) // 2 user + 2 assistant
}

func TestRunRejectsEmptyInput(t *testing.T) {
	rt := newTestRuntime(t, "ack")

	_, err := rt.Run(context.Background(), "", "   ", "", Options{})
	assert.Error(t, err)
}

func TestRunSanitizesMalformedSessionID(t *testing.T) {
	rt := newTestRuntime(t, "ack")

	resp, err := rt.Run(context.Background(), "null-", "hi", "", Options{})
	require.NoError(t, err)
	assert.NotEqual(t, "null-", resp.SessionID)
}
