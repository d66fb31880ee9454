package contextmgr

import (
	"context"
	"sync"

	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/prompt"
	"github.com/kadirpekel/memento/pkg/utils"
)

// SystemPromptSource produces the complete system prompt for a session, as
// composed by the prompt manager.
type SystemPromptSource interface {
	Generate(ctx context.Context, pctx prompt.Context) (prompt.Result, error)
}

// Config configures a Manager.
type Config struct {
	// Model names the LLM the token counter should emulate; defaults to
	// "gpt-4o".
	Model string
	// MaxTokens bounds the formatted history (system prompt excluded);
	// defaults to 4000.
	MaxTokens int
	// MaxMessages is a hard safety cap on raw messages retained per
	// session, independent of token budget; defaults to 2000.
	MaxMessages int
}

func (c *Config) setDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4000
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 2000
	}
}

// Manager maintains the ordered Message sequence per session and formats it
// for a target provider, compressing history against a token budget.
type Manager struct {
	cfg      Config
	prompts  SystemPromptSource
	counter  *utils.TokenCounter

	mu       sync.Mutex
	sessions map[string][]Message
}

// NewManager creates a Manager. prompts may be nil, in which case
// GetFormattedMessage emits no system message.
func NewManager(cfg Config, prompts SystemPromptSource) (*Manager, error) {
	cfg.setDefaults()

	counter, err := utils.NewTokenCounter(cfg.Model)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create token counter").WithComponent("ContextManager")
	}

	return &Manager{
		cfg:      cfg,
		prompts:  prompts,
		counter:  counter,
		sessions: make(map[string][]Message),
	}, nil
}

func (m *Manager) append(sessionID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.sessions[sessionID], msg)
	if len(msgs) > m.cfg.MaxMessages {
		msgs = msgs[len(msgs)-m.cfg.MaxMessages:]
	}
	m.sessions[sessionID] = msgs
}

// AddUserMessage appends a user turn, with an optional image reference.
func (m *Manager) AddUserMessage(sessionID, text, imageRef string) {
	m.append(sessionID, Message{Role: RoleUser, Content: text, ImageRef: imageRef})
}

// AddAssistantMessage appends an assistant turn, with optional tool calls.
func (m *Manager) AddAssistantMessage(sessionID, text string, toolCalls []ToolCall) {
	m.append(sessionID, Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls})
}

// AddToolResult appends the result of one tool call.
func (m *Manager) AddToolResult(sessionID, toolCallID, toolName, content string) {
	m.append(sessionID, Message{Role: RoleTool, ToolCallID: toolCallID, Name: toolName, Content: content})
}

// GetRawMessages returns the unmodified, uncompressed message sequence for
// a session, for memory extraction and introspection.
func (m *Manager) GetRawMessages(sessionID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.sessions[sessionID]))
	copy(out, m.sessions[sessionID])
	return out
}

// GetAllFormattedMessages returns a provider-neutral view of the session:
// orphaned assistant tool-calls (no matching tool result yet) are dropped
// from the view but retained in raw storage.
func (m *Manager) GetAllFormattedMessages(sessionID string) []Message {
	m.mu.Lock()
	raw := make([]Message, len(m.sessions[sessionID]))
	copy(raw, m.sessions[sessionID])
	m.mu.Unlock()

	return dropOrphanToolCalls(raw)
}

// LoadMessages replaces a session's in-memory history with messages
// recovered from persistent storage. The session manager uses this to
// rehydrate a session evicted from the active set.
func (m *Manager) LoadMessages(sessionID string, messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Message, len(messages))
	copy(cp, messages)
	m.sessions[sessionID] = cp
}

// Clear removes all history for a session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// GetFormattedMessage runs the per-turn formatting pipeline: fetch the
// system prompt, compress history against the token budget, append turn,
// and emit the list in the shape providerKind expects. turn is committed
// to raw storage as part of this call.
func (m *Manager) GetFormattedMessage(ctx context.Context, sessionID string, turn Message, providerKind ProviderKind) ([]Message, error) {
	systemContent, budget, err := m.systemPromptAndBudget(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	history := make([]Message, len(m.sessions[sessionID]))
	copy(history, m.sessions[sessionID])
	m.mu.Unlock()

	compressed := m.compress(history, budget)

	m.append(sessionID, turn)
	compressed = append(compressed, turn)

	return m.render(compressed, systemContent, providerKind), nil
}

// Reformat re-runs the formatting pipeline against the session's current
// committed history, without appending a new turn. Reasoning loops use
// this between tool-result commits and the next provider call, where the
// conversation has grown but no new user turn has arrived.
func (m *Manager) Reformat(ctx context.Context, sessionID string, providerKind ProviderKind) ([]Message, error) {
	systemContent, budget, err := m.systemPromptAndBudget(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	history := make([]Message, len(m.sessions[sessionID]))
	copy(history, m.sessions[sessionID])
	m.mu.Unlock()

	return m.render(m.compress(history, budget), systemContent, providerKind), nil
}

func (m *Manager) systemPromptAndBudget(ctx context.Context, sessionID string) (string, int, error) {
	var systemContent string
	if m.prompts != nil {
		result, err := m.prompts.Generate(ctx, prompt.Context{SessionID: sessionID})
		if err != nil {
			return "", 0, errs.Wrap(errs.Internal, err, "generate system prompt").WithComponent("ContextManager")
		}
		systemContent = result.Content
	}

	systemTokens := 0
	if systemContent != "" {
		systemTokens = m.counter.Count(systemContent)
	}
	budget := m.cfg.MaxTokens - systemTokens
	if budget < 0 {
		budget = 0
	}
	return systemContent, budget, nil
}

func (m *Manager) render(messages []Message, systemContent string, providerKind ProviderKind) []Message {
	view := dropOrphanToolCalls(messages)
	if systemContent != "" {
		view = append([]Message{{Role: RoleSystem, Content: systemContent}}, view...)
	}
	return formatFor(providerKind, view)
}

// compress drops the oldest turns (a turn is a user message plus every
// message up to, but excluding, the next user message) until the
// remaining messages fit within budget tokens, always keeping at least
// the most recent turn.
func (m *Manager) compress(messages []Message, budget int) []Message {
	turns := groupTurns(messages)
	for len(turns) > 1 && m.counter.CountMessages(toUtilsMessages(flatten(turns))) > budget {
		turns = turns[1:]
	}
	return flatten(turns)
}

func groupTurns(messages []Message) [][]Message {
	var turns [][]Message
	var current []Message
	for _, msg := range messages {
		if msg.Role == RoleUser && len(current) > 0 {
			turns = append(turns, current)
			current = nil
		}
		current = append(current, msg)
	}
	if len(current) > 0 {
		turns = append(turns, current)
	}
	return turns
}

func flatten(turns [][]Message) []Message {
	var out []Message
	for _, t := range turns {
		out = append(out, t...)
	}
	return out
}

func toUtilsMessages(messages []Message) []utils.Message {
	out := make([]utils.Message, len(messages))
	for i, msg := range messages {
		out[i] = utils.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// dropOrphanToolCalls removes assistant messages' tool calls that have no
// matching tool result yet, and drops any tool message whose originating
// assistant tool-call is missing from the view. Raw storage is untouched;
// this only affects the formatted view.
func dropOrphanToolCalls(messages []Message) []Message {
	resultIDs := make(map[string]bool)
	for _, msg := range messages {
		if msg.Role == RoleTool && msg.ToolCallID != "" {
			resultIDs[msg.ToolCallID] = true
		}
	}

	callIDs := make(map[string]bool)
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			var kept []ToolCall
			for _, tc := range msg.ToolCalls {
				if resultIDs[tc.ID] {
					kept = append(kept, tc)
					callIDs[tc.ID] = true
				}
			}
			msg.ToolCalls = kept
		}
		if msg.Role == RoleTool && msg.ToolCallID != "" && !callIDs[msg.ToolCallID] {
			continue
		}
		out = append(out, msg)
	}
	return out
}
