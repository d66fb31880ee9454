package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/vector"
)

// Operation is the action a decision resolves to for one candidate fact.
type Operation string

const (
	OpAdd    Operation = "ADD"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpNone   Operation = "NONE"
)

// Decision is the outcome of the decide step for one fact.
type Decision struct {
	Operation      Operation
	Confidence     float64
	Reasoning      string
	TargetMemoryID string
	OldMemory      string
}

// judgment is the strict JSON shape an LLM decision call is asked to
// produce; see decideWithLLM.
type judgment struct {
	Operation      string  `json:"operation"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	TargetMemoryID string  `json:"targetMemoryId"`
}

// decide picks ADD/UPDATE/DELETE/NONE for fact given its similar memories.
// When an LLM is configured it is consulted first; any failure to reach it,
// parse its answer, or validate the answer's shape falls back to the
// deterministic similarity rules, following the same attempt-then-degrade
// template used for task completion assessment elsewhere in this domain.
func (e *Engine) decide(ctx context.Context, fact string, similar []vector.Result, contextSummary string) Decision {
	if e.cfg.UseLLMDecisions && e.model != nil {
		if d, ok := e.decideWithLLM(ctx, fact, similar, contextSummary); ok {
			return d
		}
	}
	return decideBySimilarity(similar, e.cfg.SimilarityThreshold)
}

func (e *Engine) decideWithLLM(ctx context.Context, fact string, similar []vector.Result, contextSummary string) (Decision, bool) {
	prompt := buildDecisionPrompt(fact, similar, contextSummary)
	text, _, _, err := e.model.Generate(ctx, []contextmgr.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return Decision{}, false
	}

	raw := extractJSONObject(text)
	if raw == "" {
		return Decision{}, false
	}

	var j judgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return Decision{}, false
	}

	op := Operation(strings.ToUpper(strings.TrimSpace(j.Operation)))
	switch op {
	case OpAdd, OpUpdate, OpDelete, OpNone:
	default:
		return Decision{}, false
	}

	d := Decision{Operation: op, Confidence: j.Confidence, Reasoning: j.Reasoning, TargetMemoryID: j.TargetMemoryID}
	if op == OpUpdate && d.TargetMemoryID == "" && len(similar) > 0 {
		d.TargetMemoryID = similar[0].ID
		d.OldMemory = similar[0].Content
	}
	return d, true
}

func buildDecisionPrompt(fact string, similar []vector.Result, contextSummary string) string {
	var b strings.Builder
	b.WriteString("Decide what to do with a new memory candidate given similar existing memories.\n\n")
	fmt.Fprintf(&b, "Candidate fact: %s\n", fact)
	if contextSummary != "" {
		fmt.Fprintf(&b, "Context: %s\n", contextSummary)
	}
	b.WriteString("Similar memories (most similar first):\n")
	for i, s := range similar {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- id=%s score=%.3f text=%s\n", s.ID, s.Score, truncate(s.Content, 120))
	}
	if len(similar) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\nRespond with exactly one JSON object: ")
	b.WriteString(`{"operation":"ADD|UPDATE|DELETE|NONE","confidence":0.0-1.0,"reasoning":"...","targetMemoryId":"..."}`)
	b.WriteString("\ntargetMemoryId is required for UPDATE and DELETE and otherwise omitted.")
	return b.String()
}

// decideBySimilarity is the deterministic fallback: no LLM, or the LLM
// judgment didn't parse or validate.
func decideBySimilarity(similar []vector.Result, threshold float64) Decision {
	if len(similar) == 0 {
		return Decision{Operation: OpAdd, Confidence: 0.8, Reasoning: "no similar memory found"}
	}

	top := similar[0]
	score := float64(top.Score)
	switch {
	case score > 0.9:
		return Decision{Operation: OpNone, Confidence: 0.9, Reasoning: "duplicate of existing memory"}
	case score > threshold:
		return Decision{
			Operation:      OpUpdate,
			Confidence:     0.75,
			Reasoning:      "similar enough to update existing memory",
			TargetMemoryID: top.ID,
			OldMemory:      top.Content,
		}
	default:
		return Decision{Operation: OpAdd, Confidence: 0.7, Reasoning: "similarity below update threshold"}
	}
}

// extractJSONObject returns the first balanced {...} substring in text, or
// "" if none is found.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
