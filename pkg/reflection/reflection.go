// Package reflection analyzes a completed turn's reasoning content after
// the memory engine runs, and stores a quality-scored trace of it for
// later recall when the trace is good enough to be worth keeping.
//
// Like the memory engine, reflection never raises into the request path:
// a detector miss, an LLM failure, or a store failure all degrade to a
// no-op rather than propagating.
package reflection

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/embedding"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/logging"
	"github.com/kadirpekel/memento/pkg/vector"
)

// Config tunes the detector and the store-or-discard decision. Zero values
// are replaced by setDefaults.
type Config struct {
	// Enabled gates the whole engine; when false, Process is a no-op.
	Enabled bool

	// DetectorConfidenceThreshold is the minimum reasoning-content
	// confidence (see detectReasoning) required to run extraction and
	// evaluation at all.
	DetectorConfidenceThreshold float64

	// StoreThreshold is the minimum quality score (see Evaluation)
	// required to persist a trace.
	StoreThreshold float64
}

func (c *Config) setDefaults() {
	if c.DetectorConfidenceThreshold == 0 {
		c.DetectorConfidenceThreshold = 0.3
	}
	if c.StoreThreshold == 0 {
		c.StoreThreshold = 0.6
	}
}

// Input is a completed turn to consider for reflection.
type Input struct {
	SessionID     string
	UserInput     string
	AssistantText string
}

// Step is one reasoning step extracted from a turn.
type Step struct {
	Text     string
	Explicit bool
}

// Trace is the sequence of reasoning steps extracted from a turn.
type Trace struct {
	SessionID string
	Steps     []Step
}

func (t Trace) explicitCount() int {
	n := 0
	for _, s := range t.Steps {
		if s.Explicit {
			n++
		}
	}
	return n
}

// Evaluation is the quality assessment of a Trace.
type Evaluation struct {
	ShouldStore  bool
	QualityScore float64
	Issues       []string
	Suggestions  []string
}

// Result summarizes one Process call, for tests and observability.
type Result struct {
	Processed bool
	Stored    bool
	Reason    string
	Trace     Trace
	Eval      Evaluation
}

// Engine runs reasoning-content detection, step extraction, quality
// evaluation, and storage.
type Engine struct {
	cfg        Config
	evalModel  llm.Provider // a cheaper/faster model, deliberately distinct from the main reasoning model
	vectors    *vector.Manager
	embedder   *embedding.Manager
}

// NewEngine builds an Engine. evalModel is the model used for quality
// evaluation; it is expected to be a cheaper or faster configuration than
// the one driving the main reasoning loop, since evaluation runs once per
// turn on the critical path to nothing but storage.
func NewEngine(cfg Config, evalModel llm.Provider, vectors *vector.Manager, embedder *embedding.Manager) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg, evalModel: evalModel, vectors: vectors, embedder: embedder}
}

// Process runs the full detect -> extract -> evaluate -> store pipeline
// for one turn.
func (e *Engine) Process(ctx context.Context, in Input) Result {
	if !e.cfg.Enabled {
		return Result{Reason: "reflection disabled"}
	}

	confidence := detectReasoning(in.UserInput)
	if confidence < e.cfg.DetectorConfidenceThreshold {
		return Result{Reason: "no reasoning content detected"}
	}

	trace := extractReasoningSteps(in.SessionID, in.UserInput, in.AssistantText)
	if len(trace.Steps) == 0 {
		return Result{Reason: "no reasoning steps extracted"}
	}

	eval := e.evaluateReasoning(ctx, trace)
	result := Result{Processed: true, Trace: trace, Eval: eval}

	if !eval.ShouldStore || eval.QualityScore < e.cfg.StoreThreshold {
		result.Reason = "below store threshold"
		return result
	}

	if err := e.storeReasoningMemory(ctx, trace, eval); err != nil {
		logging.LogError(logging.GetLogger(), "failed to store reasoning trace", err, "session_id", in.SessionID)
		result.Reason = err.Error()
		return result
	}

	result.Stored = true
	return result
}

// detectReasoning returns a confidence in [0,1] that text contains
// step-by-step reasoning worth extracting, based on the density of
// enumeration and sequencing markers.
var reasoningMarkers = regexp.MustCompile(`(?i)\b(first|then|next|therefore|thus|finally|because|so that|step \d+|in order to)\b`)
var enumeratedLine = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*])\s+\S`)

func detectReasoning(text string) float64 {
	if text == "" {
		return 0
	}
	markers := len(reasoningMarkers.FindAllString(text, -1))
	enumerated := len(enumeratedLine.FindAllString(text, -1))
	sentences := strings.Count(text, ".") + strings.Count(text, "\n") + 1

	score := float64(markers*2+enumerated*3) / float64(sentences*2)
	if score > 1 {
		score = 1
	}
	return score
}

// extractReasoningSteps separates explicit steps (enumerated bullets, or
// sentences led by a sequencing marker) from implicit ones (every other
// non-trivial sentence), in the order they appear.
func extractReasoningSteps(sessionID, userInput, assistantText string) Trace {
	combined := userInput
	if assistantText != "" {
		combined += "\n" + assistantText
	}

	var steps []Step
	for _, line := range strings.Split(combined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if enumeratedLine.MatchString(line) {
			steps = append(steps, Step{Text: line, Explicit: true})
			continue
		}
		for _, sentence := range splitSentences(line) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			explicit := reasoningMarkers.MatchString(sentence)
			steps = append(steps, Step{Text: sentence, Explicit: explicit})
		}
	}

	return Trace{SessionID: sessionID, Steps: steps}
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == ';'
	})
}

// ExtractSteps exposes extractReasoningSteps for callers that want to run
// the extraction stage on its own, such as a compiled-in reasoning-extract
// tool.
func ExtractSteps(sessionID, userInput, assistantText string) Trace {
	return extractReasoningSteps(sessionID, userInput, assistantText)
}

// Evaluate exposes evaluateReasoning for callers that want to run the
// evaluation stage on its own, such as a compiled-in reasoning-evaluate
// tool.
func (e *Engine) Evaluate(ctx context.Context, trace Trace) Evaluation {
	return e.evaluateReasoning(ctx, trace)
}

// Store exposes storeReasoningMemory for callers that want to persist a
// trace directly, such as a compiled-in reasoning-store tool.
func (e *Engine) Store(ctx context.Context, trace Trace, eval Evaluation) error {
	return e.storeReasoningMemory(ctx, trace, eval)
}

// evaluateReasoning scores a trace for efficiency (no repeated states) and
// overall usefulness. It consults evalModel for a nuanced judgment when
// available; on any failure or an empty response it degrades to the
// heuristic in evaluateHeuristically.
func (e *Engine) evaluateReasoning(ctx context.Context, trace Trace) Evaluation {
	if e.evalModel != nil {
		if eval, ok := e.evaluateWithModel(ctx, trace); ok {
			return eval
		}
	}
	return evaluateHeuristically(trace)
}

func (e *Engine) evaluateWithModel(ctx context.Context, trace Trace) (Evaluation, bool) {
	prompt := buildEvaluationPrompt(trace)
	text, _, _, err := e.evalModel.Generate(ctx, []contextmgr.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil || strings.TrimSpace(text) == "" {
		return Evaluation{}, false
	}
	// The eval model is asked to answer with a single line starting
	// "SCORE: <0-1>" followed by any issues, one per subsequent line.
	// A malformed answer falls back to the heuristic rather than guessing.
	score, issues, ok := parseEvaluationResponse(text)
	if !ok {
		return Evaluation{}, false
	}
	return Evaluation{ShouldStore: score >= e.cfg.StoreThreshold, QualityScore: score, Issues: issues}, true
}

func buildEvaluationPrompt(trace Trace) string {
	var b strings.Builder
	b.WriteString("Rate the quality of this reasoning trace from 0 to 1, where 1 means efficient, non-repetitive, and goal-directed.\n\n")
	for i, s := range trace.Steps {
		kind := "implicit"
		if s.Explicit {
			kind = "explicit"
		}
		b.WriteString("step ")
		b.WriteString(itoa(i + 1))
		b.WriteString(" (")
		b.WriteString(kind)
		b.WriteString("): ")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with \"SCORE: <0-1>\" on the first line, then one issue per line (empty if none).")
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func parseEvaluationResponse(text string) (float64, []string, bool) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return 0, nil, false
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(strings.ToUpper(first), "SCORE:") {
		return 0, nil, false
	}
	raw := strings.TrimSpace(first[len("SCORE:"):])
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 || score > 1 {
		return 0, nil, false
	}

	var issues []string
	for _, l := range lines[1:] {
		l = strings.TrimSpace(l)
		if l != "" {
			issues = append(issues, l)
		}
	}
	return score, issues, true
}

// evaluateHeuristically scores a trace without an LLM: each loop (two
// consecutive steps that match after trimming and lowercasing) lowers the
// score by 0.15 and flags an issue; an efficient, single-pass trace with a
// reasonable step count scores well.
func evaluateHeuristically(trace Trace) Evaluation {
	var issues []string
	var suggestions []string

	loops := countLoops(trace.Steps)
	if loops > 0 {
		issues = append(issues, "repeated reasoning states detected")
		suggestions = append(suggestions, "avoid revisiting the same state without new information")
	}

	n := len(trace.Steps)
	score := 0.5
	switch {
	case n == 0:
		score = 0
	case n <= 6:
		score = 0.75
	case n <= 12:
		score = 0.6
	default:
		score = 0.4
		issues = append(issues, "reasoning trace is unusually long")
	}
	score -= float64(loops) * 0.15
	if score < 0 {
		score = 0
	}

	return Evaluation{
		ShouldStore:  score > 0,
		QualityScore: score,
		Issues:       issues,
		Suggestions:  suggestions,
	}
}

func countLoops(steps []Step) int {
	loops := 0
	for i := 1; i < len(steps); i++ {
		if normalizeForCompare(steps[i].Text) == normalizeForCompare(steps[i-1].Text) {
			loops++
		}
	}
	return loops
}

func normalizeForCompare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// storeReasoningMemory embeds the trace's combined text and upserts it into
// the reflection vector collection, which is kept separate from the memory
// engine's collection so reasoning traces and conversational facts never
// collide in similarity search.
func (e *Engine) storeReasoningMemory(ctx context.Context, trace Trace, eval Evaluation) error {
	var text strings.Builder
	for _, s := range trace.Steps {
		text.WriteString(s.Text)
		text.WriteString(". ")
	}

	vec, err := e.embedder.Embed(ctx, text.String())
	if err != nil {
		return errs.Wrap(errs.Provider, err, "embed reasoning trace").WithComponent("reflection")
	}

	payload := map[string]any{
		"session_id":     trace.SessionID,
		"text":           text.String(),
		"step_count":     len(trace.Steps),
		"explicit_steps": trace.explicitCount(),
		"quality_score":  eval.QualityScore,
		"issues":         eval.Issues,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	if err := e.vectors.Insert(ctx, [][]float32{vec}, []string{uuid.NewString()}, []map[string]any{payload}); err != nil {
		return errs.Wrap(errs.Backend, err, "store reasoning trace").WithComponent("reflection")
	}
	return nil
}
