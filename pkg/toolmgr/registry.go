package toolmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/observability"
	"github.com/kadirpekel/memento/pkg/registry"
)

// ConflictPolicy decides what happens when two sources register a tool
// under the same name.
type ConflictPolicy string

const (
	// ConflictPrefix renames the incoming tool to "<source>.<name>".
	ConflictPrefix ConflictPolicy = "prefix"
	// ConflictFirstWins keeps the already-registered tool and discards the
	// incoming one.
	ConflictFirstWins ConflictPolicy = "first-wins"
	// ConflictError rejects the registration outright.
	ConflictError ConflictPolicy = "error"
)

// DefaultExecuteTimeout bounds a single tool call when the caller doesn't
// supply its own deadline.
const DefaultExecuteTimeout = 60 * time.Second

type entry struct {
	name     string
	tool     Tool
	internal bool
	source   string
}

// Registry is the single place internal tools and tool-server tools are
// registered, conflict-resolved, and executed.
type Registry struct {
	base    *registry.BaseRegistry[entry]
	policy  ConflictPolicy
	timeout time.Duration

	conflicts atomic.Int64

	mu      sync.RWMutex
	sources map[string]bool
}

// NewRegistry creates a Registry. An empty policy defaults to ConflictPrefix;
// a zero timeout defaults to DefaultExecuteTimeout.
func NewRegistry(policy ConflictPolicy, timeout time.Duration) *Registry {
	if policy == "" {
		policy = ConflictPrefix
	}
	if timeout <= 0 {
		timeout = DefaultExecuteTimeout
	}
	return &Registry{
		base:    registry.NewBaseRegistry[entry](),
		policy:  policy,
		timeout: timeout,
		sources: make(map[string]bool),
	}
}

// RegisterInternal adds a compiled-in tool.
func (r *Registry) RegisterInternal(tool Tool) error {
	return r.register(tool, true, "internal")
}

// RegisterSource adds every tool discovered from an external source (an MCP
// server, typically), tagging each with the source's name.
func (r *Registry) RegisterSource(source string, tools []Tool) error {
	r.mu.Lock()
	r.sources[source] = true
	r.mu.Unlock()

	for _, tool := range tools {
		if err := r.register(tool, false, source); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) register(tool Tool, internal bool, source string) error {
	name := tool.Name()

	if _, exists := r.base.Get(name); exists {
		r.conflicts.Add(1)
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordToolNameConflict()
		}

		switch r.policy {
		case ConflictFirstWins:
			return nil
		case ConflictError:
			return errs.Newf(errs.Conflict, "tool %q already registered", name).WithComponent("toolmgr")
		default: // ConflictPrefix
			name = source + "." + name
		}
	}

	return r.base.Register(name, entry{name: name, tool: tool, internal: internal, source: source})
}

// Conflicts returns the number of name collisions resolved so far.
func (r *Registry) Conflicts() int64 {
	return r.conflicts.Load()
}

// ListTools returns a Descriptor per registered tool, sorted by name is the
// caller's responsibility since BaseRegistry.List has no defined order.
func (r *Registry) ListTools() []Descriptor {
	entries := r.base.List()
	out := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		out = append(out, Descriptor{
			Name:        e.name,
			Description: e.tool.Description(),
			Schema:      e.tool.Schema(),
			Internal:    e.internal,
			Source:      e.source,
		})
	}
	return out
}

// ExecuteTool runs the named tool under a per-call timeout, recording a
// trace span and metrics for the call.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any, sessionID string) (Result, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("memento.toolmgr")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)),
	)
	defer span.End()

	e, exists := r.base.Get(name)
	if !exists {
		err := errs.Newf(errs.NotFound, "tool %q not registered", name).WithComponent("toolmgr")
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordToolExecution(ctx, name, time.Since(startTime), err)
		}
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, execErr := e.tool.Execute(ctx, args, sessionID)
	duration := time.Since(startTime)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		recordErr := execErr
		if recordErr == nil && !result.Success {
			recordErr = errs.New(errs.Internal, result.Error).WithComponent("toolmgr")
		}
		metrics.RecordToolExecution(ctx, name, duration, recordErr)
	}

	switch {
	case execErr != nil:
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	case !result.Success:
		span.SetStatus(codes.Error, result.Error)
	default:
		span.SetStatus(codes.Ok, "success")
	}
	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	return result, execErr
}

// GetToolsForProvider emits the registry in the shape providerKind's tool
// calling API expects.
func (r *Registry) GetToolsForProvider(kind ProviderKind) []map[string]any {
	descriptors := r.ListTools()
	out := make([]map[string]any, 0, len(descriptors))

	for _, d := range descriptors {
		if d.Internal {
			continue
		}
		switch kind {
		case ProviderAnthropic:
			out = append(out, map[string]any{
				"name":         d.Name,
				"description":  d.Description,
				"input_schema": d.Schema,
			})
		case ProviderGemini:
			out = append(out, map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Schema,
			})
		default: // OpenAI, Ollama
			out = append(out, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        d.Name,
					"description": d.Description,
					"parameters":  d.Schema,
				},
			})
		}
	}
	return out
}
