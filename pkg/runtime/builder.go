// Package runtime wires the storage, vector, embedding, prompt, context,
// tool, LLM, memory, and reflection packages into one running
// conversation.Runtime. It is the composition root a process entrypoint
// calls once at startup; nothing elsewhere in the module depends on it.
package runtime

import (
	"context"

	"github.com/kadirpekel/memento/pkg/builtintools"
	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/conversation"
	"github.com/kadirpekel/memento/pkg/embedding"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/memory"
	"github.com/kadirpekel/memento/pkg/prompt"
	"github.com/kadirpekel/memento/pkg/reasoning"
	"github.com/kadirpekel/memento/pkg/reflection"
	"github.com/kadirpekel/memento/pkg/session"
	"github.com/kadirpekel/memento/pkg/storage"
	"github.com/kadirpekel/memento/pkg/toolmgr"
	"github.com/kadirpekel/memento/pkg/vector"
)

// KnowledgeCollection and ReflectionCollection name the two vector
// collections the memory and reflection engines persist into; they never
// share a collection so conversational facts and reasoning traces never
// compete in the same similarity search.
const (
	KnowledgeCollection  = "knowledge_memory"
	ReflectionCollection = "reflection_memory"
)

// Config gathers the configuration for every component Build assembles.
// Each sub-config is passed through to its owning package's own
// defaulting/validation; Build does not duplicate that logic.
type Config struct {
	Storage   storage.ProviderConfig
	Vector    vector.ProviderConfig
	Embedding *embedding.ProviderConfig // nil disables memory/reflection entirely

	// LLM names the provider profile the reasoning loop calls for the main
	// conversation; ReflectionLLM, if set, is the separate, typically
	// cheaper model the reflection engine uses to score traces. When
	// ReflectionLLM is zero-valued, reflection is disabled.
	LLM           llm.Config
	ReflectionLLM *llm.Config

	Prompt     []prompt.Provider
	Context    contextmgr.Config
	Reasoning  reasoning.Config
	Session    session.Config
	Memory     memory.Config
	Reflection reflection.Config

	ToolConflictPolicy toolmgr.ConflictPolicy
}

// Built holds every top-level component Build constructed, for callers
// that need direct access beyond the Runtime (e.g. a session-listing
// endpoint reading straight from Sessions, or a tool-server registering
// into Tools before the first turn).
type Built struct {
	Store      storage.Store
	Vectors    *vector.Manager
	Embedder   *embedding.Manager // nil when Config.Embedding is nil
	Tools      *toolmgr.Registry
	Sessions   *session.Manager
	Loop       *reasoning.Loop
	MemoryEng  *memory.Engine     // nil when Config.Embedding is nil
	ReflectEng *reflection.Engine // nil when ReflectionLLM is unset
	Runtime    *conversation.Runtime
}

// Build constructs the full component graph described by cfg. It connects
// storage eagerly (so a misconfigured driver fails at startup rather than
// on the first turn). The vector store and embedding provider are only
// constructed when cfg.Embedding is set, since nothing else in the graph
// uses them; leaving cfg.Embedding nil yields a chat-only runtime with no
// memory or reflection engine, per the embeddings-disabled "chat-only"
// mode the memory and reflection engines themselves fall back to.
func Build(ctx context.Context, cfg Config) (*Built, error) {
	store, err := storage.NewStore(&cfg.Storage)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "open storage backend").WithComponent("runtime")
	}
	if err := store.Connect(ctx); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "connect storage backend").WithComponent("runtime")
	}

	llmRegistry := llm.NewRegistry()
	mainModel, err := llmRegistry.CreateFromConfig("main", cfg.LLM)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create main llm provider").WithComponent("runtime")
	}

	prompts := prompt.NewComposer(cfg.Prompt)
	ctxmgr, err := contextmgr.NewManager(cfg.Context, prompts)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create context manager").WithComponent("runtime")
	}

	tools := toolmgr.NewRegistry(cfg.ToolConflictPolicy, 0)

	sessions, err := session.NewManager(cfg.Session, store, ctxmgr)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create session manager").WithComponent("runtime")
	}

	loop := reasoning.NewLoop(cfg.Reasoning, mainModel, tools, ctxmgr)

	built := &Built{Store: store, Tools: tools, Sessions: sessions, Loop: loop}

	var memoryEng *memory.Engine
	var reflectEng *reflection.Engine

	if cfg.Embedding != nil {
		embedProvider, err := embedding.NewProvider(cfg.Embedding)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "create embedding provider").WithComponent("runtime")
		}
		embedder := embedding.NewManager(embedProvider)
		built.Embedder = embedder

		vectors, err := vector.NewManager(&cfg.Vector, KnowledgeCollection, embedProvider.Dimension())
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "open vector store").WithComponent("runtime")
		}
		if err := vectors.Connect(ctx); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "connect vector store").WithComponent("runtime")
		}
		built.Vectors = vectors

		memoryEng = memory.NewEngine(cfg.Memory, vectors, embedder, mainModel)
		built.MemoryEng = memoryEng

		if cfg.ReflectionLLM != nil {
			evalModel, err := llmRegistry.CreateFromConfig("reflection", *cfg.ReflectionLLM)
			if err != nil {
				return nil, errs.Wrap(errs.Internal, err, "create reflection llm provider").WithComponent("runtime")
			}
			reflectVectors, err := vector.NewManager(&cfg.Vector, ReflectionCollection, embedProvider.Dimension())
			if err != nil {
				return nil, errs.Wrap(errs.Internal, err, "open reflection vector store").WithComponent("runtime")
			}
			if err := reflectVectors.Connect(ctx); err != nil {
				return nil, errs.Wrap(errs.Internal, err, "connect reflection vector store").WithComponent("runtime")
			}
			reflectEng = reflection.NewEngine(cfg.Reflection, evalModel, reflectVectors, embedder)
			built.ReflectEng = reflectEng
		}

		if err := registerBuiltinTools(tools, memoryEng, reflectEng); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "register builtin tools").WithComponent("runtime")
		}
	}

	built.Runtime = conversation.NewRuntime(sessions, loop, memoryEng, reflectEng)
	return built, nil
}

// registerBuiltinTools exposes the memory and reflection engines as
// internal tools a model can call directly, in addition to the
// fire-and-forget background processing Runtime schedules after every
// turn.
func registerBuiltinTools(tools *toolmgr.Registry, memoryEng *memory.Engine, reflectEng *reflection.Engine) error {
	searchTool, err := builtintools.NewMemorySearchTool(memoryEng)
	if err != nil {
		return err
	}
	extractTool, err := builtintools.NewExtractAndOperateMemoryTool(memoryEng)
	if err != nil {
		return err
	}
	reasoningExtractTool, err := builtintools.NewReasoningExtractTool()
	if err != nil {
		return err
	}

	for _, t := range []toolmgr.Tool{searchTool, extractTool, reasoningExtractTool} {
		if err := tools.RegisterInternal(t); err != nil {
			return err
		}
	}

	if reflectEng == nil {
		return nil
	}

	evaluateTool, err := builtintools.NewReasoningEvaluateTool(reflectEng)
	if err != nil {
		return err
	}
	storeTool, err := builtintools.NewReasoningStoreTool(reflectEng)
	if err != nil {
		return err
	}
	for _, t := range []toolmgr.Tool{evaluateTool, storeTool} {
		if err := tools.RegisterInternal(t); err != nil {
			return err
		}
	}
	return nil
}
