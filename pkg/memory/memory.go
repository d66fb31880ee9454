// Package memory implements the background memory engine: after each
// conversational turn, a fire-and-forget pass decides whether the turn's
// user input is worth remembering, and if so whether it should become a
// new long-term memory record, update an existing one, or be discarded as
// a near-duplicate.
//
// The engine never raises into the request path. Every failure mode short
// of a programmer error (persistence errors, a disabled embedder, a
// malformed LLM decision) degrades to a logged no-op or a deterministic
// fallback rather than propagating.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/memento/pkg/embedding"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/logging"
	"github.com/kadirpekel/memento/pkg/vector"
)

// Config tunes the decision pipeline. Zero values are replaced by
// setDefaults with the engine's defaults.
type Config struct {
	SimilarityThreshold    float64
	MaxSimilarResults      int
	ConfidenceThreshold    float64
	UseLLMDecisions        bool
	EnableDeleteOperations bool

	// MinSignificantLength is the shortest user input (in runes, after
	// trimming) that clears the significance filter.
	MinSignificantLength int
}

func (c *Config) setDefaults() {
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.7
	}
	if c.MaxSimilarResults == 0 {
		c.MaxSimilarResults = 5
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.MinSignificantLength == 0 {
		c.MinSignificantLength = 8
	}
}

// ToolUsage records one tool invocation from a completed turn, for the
// interaction summary.
type ToolUsage struct {
	Name   string
	Args   map[string]any
	Result string
}

// Interaction is everything the engine needs to process a completed turn.
type Interaction struct {
	SessionID      string
	UserInput      string
	AssistantText  string
	ToolsUsed      []ToolUsage
	ContextSummary string
}

// Mode reports how a Process call was handled.
type Mode string

const (
	ModeProcessed Mode = "processed"
	ModeChatOnly  Mode = "chat-only"
)

// FactDecision pairs a candidate fact with the decision made about it.
type FactDecision struct {
	Fact     string
	Decision Decision
}

// Result summarizes one Process call, mainly for tests and observability.
type Result struct {
	Mode      Mode
	Skipped   bool
	Reason    string
	Decisions []FactDecision
}

// Stats accumulates operation counts across the engine's lifetime.
type Stats struct {
	addOperations    int64
	updateOperations int64
	deleteOperations int64
	noneOperations   int64
}

func (s *Stats) record(op Operation) {
	switch op {
	case OpAdd:
		atomic.AddInt64(&s.addOperations, 1)
	case OpUpdate:
		atomic.AddInt64(&s.updateOperations, 1)
	case OpDelete:
		atomic.AddInt64(&s.deleteOperations, 1)
	case OpNone:
		atomic.AddInt64(&s.noneOperations, 1)
	}
}

// Snapshot is a point-in-time read of Stats.
type Snapshot struct {
	AddOperations    int64
	UpdateOperations int64
	DeleteOperations int64
	NoneOperations   int64
}

// Snapshot reads the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		AddOperations:    atomic.LoadInt64(&s.addOperations),
		UpdateOperations: atomic.LoadInt64(&s.updateOperations),
		DeleteOperations: atomic.LoadInt64(&s.deleteOperations),
		NoneOperations:   atomic.LoadInt64(&s.noneOperations),
	}
}

// Engine runs the decision pipeline against a vector store and embedder,
// optionally consulting an LLM for ambiguous decisions.
type Engine struct {
	cfg      Config
	vectors  *vector.Manager
	embedder *embedding.Manager
	model    llm.Provider

	Stats Stats
}

// NewEngine builds an Engine. model may be nil, in which case every
// decision falls back to the similarity rules.
func NewEngine(cfg Config, vectors *vector.Manager, embedder *embedding.Manager, model llm.Provider) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg, vectors: vectors, embedder: embedder, model: model}
}

// Process runs the full pipeline for one completed turn. It is designed to
// be called from a goroutine immediately after a reasoning loop returns its
// response to the caller: it never panics and never returns an error the
// caller needs to act on.
func (e *Engine) Process(ctx context.Context, in Interaction) Result {
	if disabled, reason := e.embedder.Disabled(); disabled {
		return Result{Mode: ModeChatOnly, Skipped: true, Reason: reason}
	}

	fact := in.UserInput
	if skip, reason := shouldSkip(fact, e.cfg.MinSignificantLength); skip {
		return Result{Mode: ModeProcessed, Skipped: true, Reason: reason}
	}
	if in.ContextSummary == "" {
		in.ContextSummary = BuildInteractionSummary(in)
	}

	decision, err := e.processFact(ctx, in, fact)
	if err != nil {
		// An embed failure disables the embedder for the rest of the
		// process; report chat-only immediately rather than waiting for
		// the next turn to notice.
		if disabled, reason := e.embedder.Disabled(); disabled {
			return Result{Mode: ModeChatOnly, Skipped: true, Reason: reason}
		}
		logging.LogError(logging.GetLogger(), "memory fact processing failed", err, "session_id", in.SessionID)
		return Result{Mode: ModeProcessed, Skipped: true, Reason: err.Error()}
	}

	return Result{Mode: ModeProcessed, Decisions: []FactDecision{{Fact: fact, Decision: decision}}}
}

// Search embeds query and returns up to k similar memories scoped to
// sessionID, without running the decision pipeline. It exists for callers
// that want read-only recall, such as a compiled-in memory-search tool.
func (e *Engine) Search(ctx context.Context, sessionID, query string, k int) ([]vector.Result, error) {
	if disabled, reason := e.embedder.Disabled(); disabled {
		return nil, errs.New(errs.Capability, reason).WithComponent("memory")
	}
	if k <= 0 {
		k = e.cfg.MaxSimilarResults
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return e.vectors.Search(ctx, vec, k, map[string]any{"session_id": sessionID}, float32(e.cfg.SimilarityThreshold))
}

// processFact runs embed -> search -> decide -> persist for a single
// candidate fact. A Capability error (the embedder just disabled itself)
// is returned as-is so Process can downgrade to chat-only; any other
// failure is wrapped for logging and the fact is simply dropped.
func (e *Engine) processFact(ctx context.Context, in Interaction, fact string) (Decision, error) {
	vec, err := e.embedder.Embed(ctx, fact)
	if err != nil {
		return Decision{}, err
	}

	similar, err := e.vectors.Search(ctx, vec, e.cfg.MaxSimilarResults, map[string]any{"session_id": in.SessionID}, float32(e.cfg.SimilarityThreshold))
	if err != nil {
		return Decision{}, errs.Wrap(errs.Backend, err, "search similar memories").WithComponent("memory")
	}

	decision := e.decide(ctx, fact, similar, in.ContextSummary)
	if decision.Operation == OpDelete && !e.cfg.EnableDeleteOperations {
		decision.Operation = OpNone
		decision.Reasoning += " (delete operations disabled)"
	}
	if decision.Operation != OpNone && decision.Confidence < e.cfg.ConfidenceThreshold {
		decision.Reasoning = "coerced to NONE: confidence below threshold (" + decision.Reasoning + ")"
		decision.Operation = OpNone
	}

	e.Stats.record(decision.Operation)

	if err := e.persist(ctx, in, fact, vec, decision); err != nil {
		logging.LogError(logging.GetLogger(), "memory persistence failed", err, "session_id", in.SessionID, "operation", decision.Operation)
	}

	return decision, nil
}

func (e *Engine) persist(ctx context.Context, in Interaction, fact string, vec []float32, decision Decision) error {
	codePattern, tags := extract(fact)

	payload := map[string]any{
		"text":         fact,
		"session_id":   in.SessionID,
		"event":        string(decision.Operation),
		"confidence":   decision.Confidence,
		"tags":         tags,
		"code_pattern": codePattern,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if decision.OldMemory != "" {
		payload["old_memory"] = decision.OldMemory
	}

	switch decision.Operation {
	case OpAdd:
		return e.vectors.Insert(ctx, [][]float32{vec}, []string{uuid.NewString()}, []map[string]any{payload})
	case OpUpdate:
		if decision.TargetMemoryID == "" {
			return errs.New(errs.Internal, "UPDATE decision missing target memory id").WithComponent("memory")
		}
		return e.vectors.Update(ctx, decision.TargetMemoryID, vec, payload)
	case OpDelete:
		if decision.TargetMemoryID == "" {
			return errs.New(errs.Internal, "DELETE decision missing target memory id").WithComponent("memory")
		}
		return e.vectors.Delete(ctx, decision.TargetMemoryID)
	case OpNone:
		return nil
	default:
		return errs.Newf(errs.Internal, "unknown memory operation %q", decision.Operation).WithComponent("memory")
	}
}
