package contextmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/prompt"
)

type fakePromptSource struct {
	content string
	err     error
}

func (f *fakePromptSource) Generate(ctx context.Context, pctx prompt.Context) (prompt.Result, error) {
	if f.err != nil {
		return prompt.Result{}, f.err
	}
	return prompt.Result{Content: f.content}, nil
}

func newTestManager(t *testing.T, cfg Config, src SystemPromptSource) *Manager {
	t.Helper()
	m, err := NewManager(cfg, src)
	require.NoError(t, err)
	return m
}

func TestAddAndGetRawMessages(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	m.AddUserMessage("s1", "hello", "")
	m.AddAssistantMessage("s1", "hi there", nil)

	raw := m.GetRawMessages("s1")
	require.Len(t, raw, 2)
	assert.Equal(t, RoleUser, raw[0].Role)
	assert.Equal(t, "hello", raw[0].Content)
	assert.Equal(t, RoleAssistant, raw[1].Role)
}

func TestGetAllFormattedMessagesDropsOrphanToolCalls(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	m.AddUserMessage("s1", "what's the weather", "")
	m.AddAssistantMessage("s1", "", []ToolCall{{ID: "call-1", Name: "weather"}})

	view := m.GetAllFormattedMessages("s1")
	require.Len(t, view, 2)
	assert.Empty(t, view[1].ToolCalls)

	raw := m.GetRawMessages("s1")
	require.Len(t, raw[1].ToolCalls, 1)
}

func TestGetAllFormattedMessagesKeepsResolvedToolCalls(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	m.AddUserMessage("s1", "what's the weather", "")
	m.AddAssistantMessage("s1", "", []ToolCall{{ID: "call-1", Name: "weather"}})
	m.AddToolResult("s1", "call-1", "weather", "sunny")

	view := m.GetAllFormattedMessages("s1")
	require.Len(t, view, 3)
	assert.Len(t, view[1].ToolCalls, 1)
	assert.Equal(t, RoleTool, view[2].Role)
}

func TestGetAllFormattedMessagesDropsToolResultWithoutOriginatingCall(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	m.AddUserMessage("s1", "hi", "")
	m.AddToolResult("s1", "dangling-call", "weather", "sunny")

	view := m.GetAllFormattedMessages("s1")
	require.Len(t, view, 1)
}

func TestGetFormattedMessagePrependsSystemPrompt(t *testing.T) {
	m := newTestManager(t, Config{}, &fakePromptSource{content: "You are a helpful assistant."})

	view, err := m.GetFormattedMessage(context.Background(), "s1", Message{Role: RoleUser, Content: "hello"}, ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Equal(t, RoleSystem, view[0].Role)
	assert.Equal(t, "You are a helpful assistant.", view[0].Content)
	assert.Equal(t, "hello", view[1].Content)
}

func TestGetFormattedMessageCommitsTurnToRawStorage(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	_, err := m.GetFormattedMessage(context.Background(), "s1", Message{Role: RoleUser, Content: "hello"}, ProviderOpenAI)
	require.NoError(t, err)

	raw := m.GetRawMessages("s1")
	require.Len(t, raw, 1)
	assert.Equal(t, "hello", raw[0].Content)
}

func TestReformatDoesNotAppendANewTurn(t *testing.T) {
	m := newTestManager(t, Config{}, &fakePromptSource{content: "be terse"})

	_, err := m.GetFormattedMessage(context.Background(), "s1", Message{Role: RoleUser, Content: "hello"}, ProviderOpenAI)
	require.NoError(t, err)
	m.AddAssistantMessage("s1", "hi there", nil)

	view, err := m.Reformat(context.Background(), "s1", ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, view, 3)
	assert.Equal(t, RoleSystem, view[0].Role)
	assert.Equal(t, "hello", view[1].Content)
	assert.Equal(t, "hi there", view[2].Content)

	raw := m.GetRawMessages("s1")
	require.Len(t, raw, 2)
}

func TestGetFormattedMessageAppliesGeminiFormatter(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	m.AddUserMessage("s1", "hi", "")
	m.AddAssistantMessage("s1", "hello", nil)

	view, err := m.GetFormattedMessage(context.Background(), "s1", Message{Role: RoleUser, Content: "again"}, ProviderGemini)
	require.NoError(t, err)

	for _, msg := range view {
		assert.NotEqual(t, RoleAssistant, msg.Role)
	}
}

func TestCompressDropsOldestTurnsButKeepsPairsTogether(t *testing.T) {
	m := newTestManager(t, Config{MaxTokens: 1}, nil)

	history := []Message{
		{Role: RoleUser, Content: "first question"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "c1", Name: "tool"}}},
		{Role: RoleTool, ToolCallID: "c1", Name: "tool", Content: "result"},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: RoleUser, Content: "second question"},
		{Role: RoleAssistant, Content: "second answer"},
	}

	compressed := m.compress(history, 1)
	require.Len(t, compressed, 2)
	assert.Equal(t, "second question", compressed[0].Content)
	assert.Equal(t, "second answer", compressed[1].Content)
}

func TestCompressNeverReturnsEmptyWhenHistoryNonEmpty(t *testing.T) {
	m := newTestManager(t, Config{}, nil)

	history := []Message{
		{Role: RoleUser, Content: "a very long question that takes many tokens to represent accurately in the budget"},
		{Role: RoleAssistant, Content: "a very long answer that also takes many tokens to represent accurately"},
	}

	compressed := m.compress(history, 0)
	assert.NotEmpty(t, compressed)
}

func TestAppendEnforcesMaxMessagesSafetyCap(t *testing.T) {
	m := newTestManager(t, Config{MaxMessages: 3}, nil)

	for i := 0; i < 10; i++ {
		m.AddUserMessage("s1", "msg", "")
	}

	raw := m.GetRawMessages("s1")
	assert.Len(t, raw, 3)
}

func TestClearRemovesSessionHistory(t *testing.T) {
	m := newTestManager(t, Config{}, nil)
	m.AddUserMessage("s1", "hello", "")
	m.Clear("s1")
	assert.Empty(t, m.GetRawMessages("s1"))
}
