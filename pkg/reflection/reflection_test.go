package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/embedding"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/toolmgr"
	"github.com/kadirpekel/memento/pkg/vector"
)

type stubEmbedder struct{ dim int }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	for i, r := range text {
		vec[i%s.dim] += float32(r)
	}
	return vec, nil
}
func (s stubEmbedder) Dimension() int    { return s.dim }
func (s stubEmbedder) ModelName() string { return "stub" }
func (s stubEmbedder) Close() error      { return nil }

type stubEvalProvider struct {
	text string
	err  error
}

func (p stubEvalProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	return p.text, nil, 0, p.err
}
func (p stubEvalProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}
func (p stubEvalProvider) Name() string         { return "stub-eval" }
func (p stubEvalProvider) MaxTokens() int       { return 100 }
func (p stubEvalProvider) Temperature() float64 { return 0 }
func (p stubEvalProvider) Close() error         { return nil }

var _ llm.Provider = stubEvalProvider{}

func newTestEngine(t *testing.T, cfg Config, model llm.Provider) *Engine {
	t.Helper()

	vecMgr, err := vector.NewManager(nil, "reflection_test", 8)
	require.NoError(t, err)
	require.NoError(t, vecMgr.Connect(context.Background()))

	embedMgr := embedding.NewManager(stubEmbedder{dim: 8})

	return NewEngine(cfg, model, vecMgr, embedMgr)
}

func TestProcessNoOpWhenDisabled(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: false}, nil)
	result := e.Process(context.Background(), Input{SessionID: "s1", UserInput: "First I did X, then Y, therefore Z."})
	assert.False(t, result.Processed)
	assert.False(t, result.Stored)
}

func TestProcessSkipsPlainInputWithNoReasoningMarkers(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: true}, nil)
	result := e.Process(context.Background(), Input{SessionID: "s1", UserInput: "What's the weather today?"})
	assert.False(t, result.Processed)
	assert.Equal(t, "no reasoning content detected", result.Reason)
}

func TestProcessExtractsAndStoresGoodTrace(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: true, DetectorConfidenceThreshold: 0.1, StoreThreshold: 0.3}, nil)
	input := Input{
		SessionID: "s1",
		UserInput: "1. First check the config.\n2. Then run the build.\n3. Finally deploy because tests passed.",
	}
	result := e.Process(context.Background(), input)
	require.True(t, result.Processed)
	assert.True(t, result.Stored)
	assert.GreaterOrEqual(t, result.Trace.explicitCount(), 1)
}

func TestProcessDoesNotStoreBelowQualityThreshold(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: true, DetectorConfidenceThreshold: 0.1, StoreThreshold: 0.99}, nil)
	input := Input{
		SessionID: "s1",
		UserInput: "1. First step.\n2. Then step.",
	}
	result := e.Process(context.Background(), input)
	require.True(t, result.Processed)
	assert.False(t, result.Stored)
	assert.Equal(t, "below store threshold", result.Reason)
}

func TestEvaluateWithModelUsedWhenValid(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: true}, stubEvalProvider{text: "SCORE: 0.9\nnone"})
	trace := Trace{SessionID: "s1", Steps: []Step{{Text: "first step", Explicit: true}}}
	eval := e.evaluateReasoning(context.Background(), trace)
	assert.Equal(t, 0.9, eval.QualityScore)
	assert.True(t, eval.ShouldStore)
}

func TestEvaluateFallsBackToHeuristicOnMalformedModelResponse(t *testing.T) {
	e := newTestEngine(t, Config{Enabled: true}, stubEvalProvider{text: "not a score"})
	trace := Trace{SessionID: "s1", Steps: []Step{{Text: "first step", Explicit: true}}}
	eval := e.evaluateReasoning(context.Background(), trace)
	assert.Equal(t, 0.75, eval.QualityScore)
}

func TestEvaluateHeuristicallyPenalizesLoops(t *testing.T) {
	trace := Trace{Steps: []Step{
		{Text: "check the cache"},
		{Text: "check the cache"},
		{Text: "return result"},
	}}
	eval := evaluateHeuristically(trace)
	assert.Contains(t, eval.Issues, "repeated reasoning states detected")
	assert.Less(t, eval.QualityScore, 0.75)
}

func TestDetectReasoningScoresEnumeratedTextHigher(t *testing.T) {
	plain := detectReasoning("I like cats.")
	reasoning := detectReasoning("1. First check input.\n2. Then validate it.\n3. Therefore proceed.")
	assert.Greater(t, reasoning, plain)
}

func TestExtractReasoningStepsSeparatesExplicitAndImplicit(t *testing.T) {
	trace := extractReasoningSteps("s1", "First check the input. The sky is blue.", "")
	require.NotEmpty(t, trace.Steps)
	var sawExplicit, sawImplicit bool
	for _, s := range trace.Steps {
		if s.Explicit {
			sawExplicit = true
		} else {
			sawImplicit = true
		}
	}
	assert.True(t, sawExplicit)
	assert.True(t, sawImplicit)
}
