// Package reasoning drives the bounded tool-call loop: format the
// conversation, call the provider, dispatch any tool calls it requests,
// commit the results, and repeat until the provider stops asking for
// tools or the iteration cap is hit.
package reasoning

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/llm"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

const (
	DefaultMaxIterations  = 50
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond

	maxIterationsText = "task completed but reached max iterations"

	// substantialTextLen is the threshold above which assistant text is
	// considered a real answer rather than commentary accompanying a tool
	// call, per rule (b): prefer text over a tool call when both appear.
	substantialTextLen = 40
)

// Config configures a Loop.
type Config struct {
	MaxIterations  int
	MaxRetries     int
	RetryBaseDelay time.Duration
	ProviderKind   contextmgr.ProviderKind
}

func (c *Config) setDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.ProviderKind == "" {
		c.ProviderKind = contextmgr.ProviderOpenAI
	}
}

// Event is one unit of progress emitted while a loop runs. Streaming
// callers read these off a channel; Run callers can ignore them entirely.
type Event struct {
	Type     string // "text", "tool_call", "tool_result", "done", "error"
	Text     string
	ToolCall *contextmgr.ToolCall
	ToolName string
	Result   string
	Error    error
}

// Loop drives one conversational turn through CALL_LLM / DISPATCH /
// EXECUTE_TOOLS / COMMIT cycles against a provider, a tool registry, and
// the conversation's context manager.
type Loop struct {
	cfg     Config
	model   llm.Provider
	tools   *toolmgr.Registry
	context *contextmgr.Manager
}

// NewLoop builds a Loop. provider, tools, and ctxmgr must be non-nil.
func NewLoop(cfg Config, provider llm.Provider, tools *toolmgr.Registry, ctxmgr *contextmgr.Manager) *Loop {
	cfg.setDefaults()
	return &Loop{cfg: cfg, model: provider, tools: tools, context: ctxmgr}
}

// Run executes one user turn to completion and returns the final
// assistant text.
func (l *Loop) Run(ctx context.Context, sessionID, input, imageRef string) (string, error) {
	return l.drive(ctx, sessionID, input, imageRef, nil)
}

// RunStreaming executes one user turn, emitting Events as the loop
// progresses. The channel is closed when the loop terminates; the final
// text is also carried on the "done" event.
func (l *Loop) RunStreaming(ctx context.Context, sessionID, input, imageRef string) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		text, err := l.drive(ctx, sessionID, input, imageRef, ch)
		if err != nil {
			ch <- Event{Type: "error", Error: err}
			return
		}
		ch <- Event{Type: "done", Text: text}
	}()
	return ch
}

func (l *Loop) drive(ctx context.Context, sessionID, input, imageRef string, sink chan<- Event) (string, error) {
	messages, err := l.context.GetFormattedMessage(ctx, sessionID, contextmgr.Message{
		Role: contextmgr.RoleUser, Content: input, ImageRef: imageRef,
	}, l.cfg.ProviderKind)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "format conversation").WithComponent("reasoning")
	}

	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tools := l.tools.ListTools()
		text, toolCalls, err := l.callWithRetry(ctx, messages, tools)
		if err != nil {
			return "", err
		}

		// Rule (b): a chatty provider sometimes returns both a real answer
		// and a redundant tool call; prefer the answer.
		if len(strings.TrimSpace(text)) >= substantialTextLen && len(toolCalls) > 0 {
			toolCalls = nil
		}

		if len(toolCalls) == 0 {
			l.context.AddAssistantMessage(sessionID, text, nil)
			if sink != nil && text != "" {
				sink <- Event{Type: "text", Text: text}
			}
			return text, nil
		}

		l.context.AddAssistantMessage(sessionID, text, toolCalls)
		if sink != nil && text != "" {
			sink <- Event{Type: "text", Text: text}
		}

		for _, tc := range toolCalls {
			l.dispatchTool(ctx, sessionID, tc, sink)
		}

		messages, err = l.context.Reformat(ctx, sessionID, l.cfg.ProviderKind)
		if err != nil {
			return "", errs.Wrap(errs.Internal, err, "reformat conversation").WithComponent("reasoning")
		}
	}

	l.context.AddAssistantMessage(sessionID, maxIterationsText, nil)
	if sink != nil {
		sink <- Event{Type: "text", Text: maxIterationsText}
	}
	return maxIterationsText, nil
}

// dispatchTool resolves one tool call's arguments and executes it, always
// committing a tool-result message: a parse failure or execution error
// becomes an error payload rather than a loop-ending failure.
func (l *Loop) dispatchTool(ctx context.Context, sessionID string, tc contextmgr.ToolCall, sink chan<- Event) {
	if sink != nil {
		call := tc
		sink <- Event{Type: "tool_call", ToolCall: &call}
	}

	args := tc.Arguments
	if args == nil && tc.RawArgs != "" {
		if err := json.Unmarshal([]byte(tc.RawArgs), &args); err != nil {
			content := errorPayload("failed to parse arguments")
			l.context.AddToolResult(sessionID, tc.ID, tc.Name, content)
			if sink != nil {
				sink <- Event{Type: "tool_result", ToolName: tc.Name, Result: content}
			}
			return
		}
	}

	var content string
	result, err := l.tools.ExecuteTool(ctx, tc.Name, args, sessionID)
	switch {
	case err != nil:
		content = errorPayload(err.Error())
	case !result.Success:
		content = errorPayload(result.Error)
	default:
		content = result.Content
	}

	l.context.AddToolResult(sessionID, tc.ID, tc.Name, content)
	if sink != nil {
		sink <- Event{Type: "tool_result", ToolName: tc.Name, Result: content}
	}
}

func errorPayload(message string) string {
	data, _ := json.Marshal(map[string]string{"error": message})
	return string(data)
}

// callWithRetry calls the provider, retrying transient failures up to
// cfg.MaxRetries times with linear backoff. Tools are offered on the
// first attempt only; retries withdraw them so the provider can't keep
// asking for the same call that just failed to produce a response.
func (l *Loop) callWithRetry(ctx context.Context, messages []contextmgr.Message, tools []toolmgr.Descriptor) (string, []contextmgr.ToolCall, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		offered := tools
		if attempt > 0 {
			offered = nil
		}

		text, toolCalls, _, err := l.model.Generate(ctx, messages, offered)
		if err == nil {
			return text, toolCalls, nil
		}
		lastErr = err

		if attempt == l.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * l.cfg.RetryBaseDelay):
		}
	}
	return "", nil, errs.Wrap(errs.Provider, lastErr, "generate response").WithComponent("reasoning")
}
