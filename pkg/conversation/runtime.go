// Package conversation wires the session manager, reasoning loop, memory
// engine, and reflection engine into the single per-turn entry point the
// rest of the system calls: validate input, run the turn, hand the
// completed turn to the background engines, return the response.
package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/memory"
	"github.com/kadirpekel/memento/pkg/reasoning"
	"github.com/kadirpekel/memento/pkg/reflection"
	"github.com/kadirpekel/memento/pkg/session"
)

// Options adjusts a single Run call.
type Options struct {
	// LLMConfig is recorded against a newly created session; ignored when
	// the session already exists.
	LLMConfig session.LLMConfig
}

// Response is what one completed turn returns to its caller.
type Response struct {
	SessionID string
	Text      string
}

// Runtime is the conversational entry point: one Run (or RunStreaming)
// call per turn, with memory and reflection processing scheduled in the
// background immediately after the turn's response is ready.
type Runtime struct {
	sessions   *session.Manager
	loop       *reasoning.Loop
	memoryEng  *memory.Engine
	reflectEng *reflection.Engine
}

// NewRuntime builds a Runtime from its already-constructed dependencies.
// sessions and loop must share the same contextmgr.Manager instance so a
// turn's messages land in the history the session manager is tracking;
// memoryEng and reflectEng may be nil, in which case background
// processing for that engine is skipped entirely.
func NewRuntime(sessions *session.Manager, loop *reasoning.Loop, memoryEng *memory.Engine, reflectEng *reflection.Engine) *Runtime {
	return &Runtime{sessions: sessions, loop: loop, memoryEng: memoryEng, reflectEng: reflectEng}
}

// Run validates input, ensures the session exists, executes one turn
// through the reasoning loop, schedules background memory and reflection
// processing, and returns the assistant's response.
func (r *Runtime) Run(ctx context.Context, sessionID, input, imageRef string, opts Options) (Response, error) {
	resolvedID, text, err := r.runTurn(ctx, sessionID, input, imageRef, opts)
	if err != nil {
		return Response{}, err
	}
	return Response{SessionID: resolvedID, Text: text}, nil
}

// RunStreaming is Run for a caller that wants incremental events. The
// returned channel is closed once the turn completes; background
// processing is scheduled only after the stream finishes, exactly as for
// Run.
func (r *Runtime) RunStreaming(ctx context.Context, sessionID, input, imageRef string, opts Options) (<-chan reasoning.Event, error) {
	sessionID, err := r.ensureSession(ctx, sessionID, opts)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	out := make(chan reasoning.Event, 64)
	go func() {
		defer close(out)
		var finalText string
		for ev := range r.loop.RunStreaming(ctx, sessionID, input, imageRef) {
			if ev.Type == "done" {
				finalText = ev.Text
			}
			out <- ev
		}
		r.scheduleBackground(sessionID, input, finalText)
	}()
	return out, nil
}

func (r *Runtime) runTurn(ctx context.Context, sessionID, input, imageRef string, opts Options) (string, string, error) {
	sessionID, err := r.ensureSession(ctx, sessionID, opts)
	if err != nil {
		return "", "", err
	}
	if err := validateInput(input); err != nil {
		return "", "", err
	}

	text, err := r.loop.Run(ctx, sessionID, input, imageRef)
	if err != nil {
		return "", "", err
	}

	r.scheduleBackground(sessionID, input, text)
	return sessionID, text, nil
}

// ensureSession sanitizes the id (when supplied) and loads or creates it.
// session.Manager.Load already falls back to Create for an unknown id, so
// this only needs to supply a valid id and let it route.
func (r *Runtime) ensureSession(ctx context.Context, sessionID string, opts Options) (string, error) {
	if sessionID == "" {
		meta, err := r.sessions.Create(ctx, "", opts.LLMConfig)
		if err != nil {
			return "", err
		}
		return meta.ID, nil
	}

	clean, ok := sanitizeSessionID(sessionID)
	if !ok {
		meta, err := r.sessions.Create(ctx, "", opts.LLMConfig)
		if err != nil {
			return "", err
		}
		return meta.ID, nil
	}

	meta, err := r.sessions.Load(ctx, clean)
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

func validateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return errs.New(errs.Validation, "input must not be empty").WithComponent("conversation")
	}
	return nil
}

// scheduleBackground runs the memory and reflection engines, in that
// order, on a background goroutine. It never blocks the caller and never
// lets either engine's panic or error escape into the request path.
func (r *Runtime) scheduleBackground(sessionID, input, assistantText string) {
	if r.memoryEng == nil && r.reflectEng == nil {
		return
	}

	go func() {
		ctx := context.Background()

		if r.memoryEng != nil {
			result := r.memoryEng.Process(ctx, memory.Interaction{
				SessionID:     sessionID,
				UserInput:     input,
				AssistantText: assistantText,
			})
			if result.Skipped {
				slog.Debug("memory processing skipped", "session_id", sessionID, "reason", result.Reason)
			}
		}

		if r.reflectEng != nil {
			result := r.reflectEng.Process(ctx, reflection.Input{
				SessionID:     sessionID,
				UserInput:     input,
				AssistantText: assistantText,
			})
			if result.Processed && !result.Stored {
				slog.Debug("reflection trace not stored", "session_id", sessionID, "reason", result.Reason)
			}
		}
	}()
}

// GetHistory returns a session's message history and lets callers avoid
// reaching into the session manager directly.
func (r *Runtime) GetHistory(ctx context.Context, sessionID string) ([]contextmgr.Message, session.Source, error) {
	return r.sessions.GetHistory(ctx, sessionID)
}
