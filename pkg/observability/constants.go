package observability

// Span and attribute names used for tracing spans around tool dispatch,
// memory decisions, and reflection evaluation.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrToolName       = "tool.name"
	AttrToolConflict   = "tool.conflict_resolution"
	AttrMemoryEvent    = "memory.event"
	AttrSessionID      = "session.id"
	AttrErrorType      = "error.type"

	SpanToolExecution   = "runtime.tool_execution"
	SpanMemoryDecision  = "runtime.memory_decision"
	SpanReflectionTrace = "runtime.reflection_trace"
	SpanSessionTurn     = "runtime.session_turn"

	DefaultServiceName = "memento"
)
