// Package builtintools adapts the memory and reflection engines into
// compiled-in tools the unified tool registry can offer to a provider:
// memory-search, extract-and-operate-memory, reasoning-extract,
// reasoning-evaluate, and reasoning-store.
package builtintools

import (
	"context"

	"github.com/kadirpekel/memento/pkg/memory"
	"github.com/kadirpekel/memento/pkg/reflection"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

// MemorySearchArgs is the input to the memory-search tool.
type MemorySearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=text to search similar memories for"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=maximum number of results"`
}

// NewMemorySearchTool returns a read-only recall tool backed by eng.
func NewMemorySearchTool(eng *memory.Engine) (toolmgr.Tool, error) {
	return toolmgr.Func("memory-search", "Search long-term memory for records similar to a query, scoped to the current session.",
		func(ctx context.Context, args MemorySearchArgs, sessionID string) (toolmgr.Result, error) {
			results, err := eng.Search(ctx, sessionID, args.Query, args.Limit)
			if err != nil {
				return toolmgr.Result{Success: false, Error: err.Error()}, nil
			}

			matches := make([]map[string]any, len(results))
			for i, r := range results {
				matches[i] = map[string]any{"id": r.ID, "score": r.Score, "text": r.Content}
			}
			return toolmgr.Result{Success: true, Metadata: map[string]any{"matches": matches}}, nil
		})
}

// ExtractAndOperateMemoryArgs is the input to the extract-and-operate-memory
// tool.
type ExtractAndOperateMemoryArgs struct {
	UserInput     string `json:"userInput" jsonschema:"required,description=the candidate fact to evaluate"`
	AssistantText string `json:"assistantText,omitempty" jsonschema:"description=the assistant's reply for context"`
}

// NewExtractAndOperateMemoryTool returns a tool that runs the full
// memory decision pipeline (filter, embed, search, decide, persist) for an
// arbitrary piece of text, for callers that want to force memory
// processing outside the normal post-turn background pass.
func NewExtractAndOperateMemoryTool(eng *memory.Engine) (toolmgr.Tool, error) {
	return toolmgr.Func("extract-and-operate-memory", "Evaluate a piece of text as a long-term memory candidate and add, update, delete, or discard it.",
		func(ctx context.Context, args ExtractAndOperateMemoryArgs, sessionID string) (toolmgr.Result, error) {
			result := eng.Process(ctx, memory.Interaction{
				SessionID:     sessionID,
				UserInput:     args.UserInput,
				AssistantText: args.AssistantText,
			})

			meta := map[string]any{"mode": string(result.Mode), "skipped": result.Skipped}
			if len(result.Decisions) > 0 {
				meta["operation"] = string(result.Decisions[0].Decision.Operation)
				meta["confidence"] = result.Decisions[0].Decision.Confidence
			}
			return toolmgr.Result{Success: true, Metadata: meta}, nil
		})
}

// ReasoningExtractArgs is the input to the reasoning-extract tool.
type ReasoningExtractArgs struct {
	UserInput     string `json:"userInput" jsonschema:"required,description=the text to extract reasoning steps from"`
	AssistantText string `json:"assistantText,omitempty" jsonschema:"description=accompanying assistant text"`
}

// NewReasoningExtractTool returns a tool that extracts explicit and
// implicit reasoning steps from text without evaluating or storing them.
func NewReasoningExtractTool() (toolmgr.Tool, error) {
	return toolmgr.Func("reasoning-extract", "Extract explicit and implicit reasoning steps from a turn's text.",
		func(ctx context.Context, args ReasoningExtractArgs, sessionID string) (toolmgr.Result, error) {
			trace := reflection.ExtractSteps(sessionID, args.UserInput, args.AssistantText)

			steps := make([]map[string]any, len(trace.Steps))
			for i, s := range trace.Steps {
				steps[i] = map[string]any{"text": s.Text, "explicit": s.Explicit}
			}
			return toolmgr.Result{Success: true, Metadata: map[string]any{"steps": steps}}, nil
		})
}

// ReasoningEvaluateArgs is the input to the reasoning-evaluate tool.
type ReasoningEvaluateArgs struct {
	Steps []string `json:"steps" jsonschema:"required,description=reasoning step texts, in order"`
}

// NewReasoningEvaluateTool returns a tool that scores a reasoning trace
// for quality without storing it.
func NewReasoningEvaluateTool(eng *reflection.Engine) (toolmgr.Tool, error) {
	return toolmgr.Func("reasoning-evaluate", "Score a sequence of reasoning steps for efficiency and usefulness.",
		func(ctx context.Context, args ReasoningEvaluateArgs, sessionID string) (toolmgr.Result, error) {
			steps := make([]reflection.Step, len(args.Steps))
			for i, s := range args.Steps {
				steps[i] = reflection.Step{Text: s}
			}
			trace := reflection.Trace{SessionID: sessionID, Steps: steps}
			eval := eng.Evaluate(ctx, trace)

			return toolmgr.Result{Success: true, Metadata: map[string]any{
				"shouldStore":  eval.ShouldStore,
				"qualityScore": eval.QualityScore,
				"issues":       eval.Issues,
				"suggestions":  eval.Suggestions,
			}}, nil
		})
}

// ReasoningStoreArgs is the input to the reasoning-store tool.
type ReasoningStoreArgs struct {
	Steps        []string `json:"steps" jsonschema:"required,description=reasoning step texts, in order"`
	QualityScore float64  `json:"qualityScore" jsonschema:"required,description=quality score already computed for these steps"`
}

// NewReasoningStoreTool returns a tool that persists a reasoning trace
// directly, bypassing detection and evaluation.
func NewReasoningStoreTool(eng *reflection.Engine) (toolmgr.Tool, error) {
	return toolmgr.Func("reasoning-store", "Persist a reasoning trace into long-term memory.",
		func(ctx context.Context, args ReasoningStoreArgs, sessionID string) (toolmgr.Result, error) {
			steps := make([]reflection.Step, len(args.Steps))
			for i, s := range args.Steps {
				steps[i] = reflection.Step{Text: s}
			}
			trace := reflection.Trace{SessionID: sessionID, Steps: steps}
			eval := reflection.Evaluation{ShouldStore: true, QualityScore: args.QualityScore}

			if err := eng.Store(ctx, trace, eval); err != nil {
				return toolmgr.Result{Success: false, Error: err.Error()}, nil
			}
			return toolmgr.Result{Success: true}, nil
		})
}
