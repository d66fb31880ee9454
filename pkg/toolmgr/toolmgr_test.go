package toolmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=text to echo"`
}

func newEchoTool(t *testing.T, name string) Tool {
	t.Helper()
	tool, err := Func(name, "echoes its input", func(_ context.Context, args echoArgs, _ string) (Result, error) {
		return Result{Success: true, Content: args.Text}, nil
	})
	require.NoError(t, err)
	return tool
}

func TestFuncGeneratesSchemaFromArgsStruct(t *testing.T) {
	tool := newEchoTool(t, "echo")
	schema := tool.Schema()
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
}

func TestFuncDecodesMapArgsIntoStruct(t *testing.T) {
	tool := newEchoTool(t, "echo")
	result, err := tool.Execute(context.Background(), map[string]any{"text": "hi"}, "session-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Content)
}

func TestRegistryExecutesRegisteredTool(t *testing.T) {
	reg := NewRegistry(ConflictError, 0)
	require.NoError(t, reg.RegisterInternal(newEchoTool(t, "echo")))

	result, err := reg.ExecuteTool(context.Background(), "echo", map[string]any{"text": "hello"}, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Content)
}

func TestRegistryExecuteUnknownToolReturnsNotFound(t *testing.T) {
	reg := NewRegistry(ConflictError, 0)
	_, err := reg.ExecuteTool(context.Background(), "missing", nil, "")
	require.Error(t, err)
}

func TestRegistryConflictPolicyError(t *testing.T) {
	reg := NewRegistry(ConflictError, 0)
	require.NoError(t, reg.RegisterInternal(newEchoTool(t, "echo")))

	err := reg.RegisterInternal(newEchoTool(t, "echo"))
	require.Error(t, err)
	assert.EqualValues(t, 1, reg.Conflicts())
}

func TestRegistryConflictPolicyFirstWins(t *testing.T) {
	reg := NewRegistry(ConflictFirstWins, 0)
	require.NoError(t, reg.RegisterSource("source-a", []Tool{newEchoTool(t, "echo")}))
	require.NoError(t, reg.RegisterSource("source-b", []Tool{newEchoTool(t, "echo")}))

	tools := reg.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "source-a", tools[0].Source)
	assert.EqualValues(t, 1, reg.Conflicts())
}

func TestRegistryConflictPolicyPrefix(t *testing.T) {
	reg := NewRegistry(ConflictPrefix, 0)
	require.NoError(t, reg.RegisterSource("source-a", []Tool{newEchoTool(t, "echo")}))
	require.NoError(t, reg.RegisterSource("source-b", []Tool{newEchoTool(t, "echo")}))

	tools := reg.ListTools()
	names := make([]string, 0, len(tools))
	for _, d := range tools {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "echo")
	assert.Contains(t, names, "source-b.echo")
}

func TestGetToolsForProviderShapesPerProvider(t *testing.T) {
	reg := NewRegistry(ConflictError, 0)
	require.NoError(t, reg.RegisterSource("source-a", []Tool{newEchoTool(t, "echo")}))

	openai := reg.GetToolsForProvider(ProviderOpenAI)
	require.Len(t, openai, 1)
	assert.Equal(t, "function", openai[0]["type"])

	anthropic := reg.GetToolsForProvider(ProviderAnthropic)
	require.Len(t, anthropic, 1)
	assert.Contains(t, anthropic[0], "input_schema")

	gemini := reg.GetToolsForProvider(ProviderGemini)
	require.Len(t, gemini, 1)
	assert.Contains(t, gemini[0], "parameters")
}

func TestGetToolsForProviderExcludesInternalTools(t *testing.T) {
	reg := NewRegistry(ConflictError, 0)
	require.NoError(t, reg.RegisterInternal(newEchoTool(t, "echo")))

	assert.Empty(t, reg.GetToolsForProvider(ProviderOpenAI))
}
