package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/toolmgr"
	"github.com/kadirpekel/memento/pkg/vector"
)

type stubDecisionProvider struct {
	text string
	err  error
}

func (p stubDecisionProvider) Generate(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, int, error) {
	return p.text, nil, 0, p.err
}
func (p stubDecisionProvider) GenerateStreaming(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}
func (p stubDecisionProvider) Name() string         { return "stub" }
func (p stubDecisionProvider) MaxTokens() int       { return 0 }
func (p stubDecisionProvider) Temperature() float64 { return 0 }
func (p stubDecisionProvider) Close() error         { return nil }

var _ llm.Provider = stubDecisionProvider{}

func TestDecideBySimilarityNoSimilarAdds(t *testing.T) {
	d := decideBySimilarity(nil, 0.7)
	assert.Equal(t, OpAdd, d.Operation)
	assert.Equal(t, 0.8, d.Confidence)
}

func TestDecideBySimilarityHighScoreIsNone(t *testing.T) {
	d := decideBySimilarity([]vector.Result{{ID: "a", Score: 0.95, Content: "x"}}, 0.7)
	assert.Equal(t, OpNone, d.Operation)
}

func TestDecideBySimilarityMidScoreUpdates(t *testing.T) {
	d := decideBySimilarity([]vector.Result{{ID: "a", Score: 0.8, Content: "old text"}}, 0.7)
	assert.Equal(t, OpUpdate, d.Operation)
	assert.Equal(t, "a", d.TargetMemoryID)
	assert.Equal(t, "old text", d.OldMemory)
}

func TestDecideBySimilarityLowScoreAdds(t *testing.T) {
	d := decideBySimilarity([]vector.Result{{ID: "a", Score: 0.3, Content: "x"}}, 0.7)
	assert.Equal(t, OpAdd, d.Operation)
}

func TestExtractJSONObjectFindsFirstBalancedObject(t *testing.T) {
	text := `here is your answer: {"operation":"ADD","confidence":0.9,"reasoning":"ok"} thanks`
	raw := extractJSONObject(text)
	assert.Equal(t, `{"operation":"ADD","confidence":0.9,"reasoning":"ok"}`, raw)
}

func TestExtractJSONObjectReturnsEmptyWhenAbsent(t *testing.T) {
	assert.Equal(t, "", extractJSONObject("no json here"))
}

func TestDecideWithLLMFallsBackOnMalformedJSON(t *testing.T) {
	e := &Engine{cfg: Config{UseLLMDecisions: true}, model: stubDecisionProvider{text: "not json at all"}}
	e.cfg.setDefaults()

	d := e.decide(context.Background(), "fact", nil, "")
	assert.Equal(t, OpAdd, d.Operation) // falls back to similarity rules: no similar -> ADD
}

func TestDecideWithLLMUsesValidJudgment(t *testing.T) {
	e := &Engine{
		cfg:   Config{UseLLMDecisions: true},
		model: stubDecisionProvider{text: `{"operation":"DELETE","confidence":0.8,"reasoning":"obsolete","targetMemoryId":"mem-1"}`},
	}
	e.cfg.setDefaults()

	d := e.decide(context.Background(), "fact", []vector.Result{{ID: "mem-1", Score: 0.95}}, "")
	require.Equal(t, OpDelete, d.Operation)
	assert.Equal(t, "mem-1", d.TargetMemoryID)
}
