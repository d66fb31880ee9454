// Package session manages session lifecycle: creation, listing, loading,
// and deletion, plus the bounded set of sessions kept "hot" (their full
// conversation history held in a context manager rather than fetched from
// storage on every turn).
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/google/uuid"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/logging"
	"github.com/kadirpekel/memento/pkg/storage"
)

const (
	metadataKeyPrefix = "session:"
	messagesKeyPrefix = "messages:"

	// fetchAllCount is large enough to retrieve an entire persisted
	// message list in one GetRange call.
	fetchAllCount = 1 << 20
)

// Source identifies where a history retrieval was satisfied from, for
// observability.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceDatabase Source = "database"
	SourceEmpty    Source = "empty"
)

// LLMConfig is the effective provider configuration recorded against a
// session at creation time.
type LLMConfig struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	MaxIterations int    `json:"max_iterations"`
}

// Metadata is a session's identity and bookkeeping, independent of its
// message history.
type Metadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
	Topic        string    `json:"topic"`
	LLMConfig    LLMConfig `json:"llm_config"`

	// ConversationHistory is a fallback snapshot of the full message list,
	// written alongside the normalized per-message list under
	// messages:<id> so a reader can recover history even if the
	// normalized list was never written (e.g. an older persisted
	// session).
	ConversationHistory []contextmgr.Message `json:"conversation_history,omitempty"`
}

// Config configures a Manager.
type Config struct {
	// MaxActiveSessions bounds how many sessions' full histories are held
	// in the context manager at once; the rest live in storage only.
	// Defaults to 128.
	MaxActiveSessions int
	// BatchConcurrency caps how many sessions GetBatchSessionMetadata
	// fetches concurrently. Defaults to 32.
	BatchConcurrency int
}

func (c *Config) setDefaults() {
	if c.MaxActiveSessions <= 0 {
		c.MaxActiveSessions = 128
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 32
	}
}

type active struct {
	meta           *Metadata
	persistedCount int
}

// Manager creates, lists, loads, and deletes sessions, and keeps a bounded
// LRU of active sessions' full histories in a contextmgr.Manager.
type Manager struct {
	cfg     Config
	store   storage.Store
	context *contextmgr.Manager
	cache   *lru.Cache
	history singleflight.Group

	mu      sync.Mutex
	active  map[string]*active
	current string
}

// NewManager builds a Manager. store and ctxmgr must be non-nil.
func NewManager(cfg Config, store storage.Store, ctxmgr *contextmgr.Manager) (*Manager, error) {
	cfg.setDefaults()

	m := &Manager{cfg: cfg, store: store, context: ctxmgr, active: make(map[string]*active)}

	cache, err := lru.NewWithEvict(cfg.MaxActiveSessions, m.onEvict)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create session cache").WithComponent("session")
	}
	m.cache = cache

	return m, nil
}

// onEvict runs when the LRU drops the least-recently-used session to make
// room for a new one. Eviction is best-effort fire-and-forget: the
// session's history is flushed to storage so Load can recover it later,
// and any flush failure is logged rather than surfaced, since nothing is
// waiting on this eviction to complete.
func (m *Manager) onEvict(key, _ any) {
	id := key.(string)

	m.mu.Lock()
	a, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := m.flush(context.Background(), a); err != nil {
		logging.LogError(logging.GetLogger(), "failed to flush evicted session", err, "session_id", id)
	}
	m.context.Clear(id)
}

// Create starts a new session. An explicit id that already exists fails
// with a Conflict error; an empty id is server-generated.
func (m *Manager) Create(ctx context.Context, id string, llmCfg LLMConfig) (*Metadata, error) {
	if id != "" {
		if _, found, err := m.store.Get(ctx, metadataKeyPrefix+id); err != nil {
			return nil, errs.Wrap(errs.Backend, err, "check existing session").WithComponent("session")
		} else if found {
			return nil, errs.Newf(errs.Conflict, "session %q already exists", id).WithComponent("session")
		}
	} else {
		id = uuid.NewString()
	}

	now := time.Now()
	meta := &Metadata{ID: id, CreatedAt: now, LastActiveAt: now, LLMConfig: llmCfg}
	if err := m.persistMetadata(ctx, meta); err != nil {
		return nil, err
	}

	m.activate(id, meta)
	return meta, nil
}

// Load fetches a session's metadata, preferring the active set. A
// non-existent id falls back to creating a session with that id; if that
// also fails (e.g. a concurrent creator won the race), a server-generated
// id is used instead.
func (m *Manager) Load(ctx context.Context, id string) (*Metadata, error) {
	m.mu.Lock()
	if a, ok := m.active[id]; ok {
		meta := *a.meta
		m.mu.Unlock()
		m.cache.Get(id) // touch recency
		return &meta, nil
	}
	m.mu.Unlock()

	data, found, err := m.store.Get(ctx, metadataKeyPrefix+id)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "load session metadata").WithComponent("session")
	}
	if !found {
		meta, err := m.Create(ctx, id, LLMConfig{})
		if err != nil {
			return m.Create(ctx, "", LLMConfig{})
		}
		return meta, nil
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode session metadata").WithComponent("session")
	}

	messages, _, err := m.getHistoryUncached(ctx, id, &meta)
	if err != nil {
		return nil, err
	}
	m.context.LoadMessages(id, messages)
	m.activate(id, &meta)

	return &meta, nil
}

// activate adds a session to the active set, evicting the
// least-recently-used entry if the cache is full.
func (m *Manager) activate(id string, meta *Metadata) {
	m.mu.Lock()
	m.active[id] = &active{meta: meta, persistedCount: len(meta.ConversationHistory)}
	m.mu.Unlock()
	m.cache.Add(id, struct{}{})
}

// SetCurrent marks id as the current session. The current session cannot
// be deleted.
func (m *Manager) SetCurrent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = id
}

// Current returns the current session id, or "" if none is set.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Delete removes a session's metadata and history. The current session
// cannot be deleted.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if id == m.current {
		m.mu.Unlock()
		return errs.Newf(errs.Validation, "cannot delete the current session %q", id).WithComponent("session")
	}
	delete(m.active, id)
	m.mu.Unlock()

	m.cache.Remove(id)
	m.context.Clear(id)

	if err := m.store.Delete(ctx, metadataKeyPrefix+id); err != nil {
		return errs.Wrap(errs.Backend, err, "delete session metadata").WithComponent("session")
	}
	if err := m.store.Delete(ctx, messagesKeyPrefix+id); err != nil {
		return errs.Wrap(errs.Backend, err, "delete session messages").WithComponent("session")
	}
	return nil
}

// List returns every persisted session, with phantom sessions
// (messageCount==0) filtered out.
func (m *Manager) List(ctx context.Context) ([]Metadata, error) {
	keys, err := m.store.List(ctx, metadataKeyPrefix)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "list sessions").WithComponent("session")
	}

	out := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		data, found, err := m.store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if meta.MessageCount == 0 {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Flush commits a session's current in-memory history to storage. Callers
// running a reasoning loop should call this after each turn; eviction
// flushes automatically otherwise, while Delete does not flush.
func (m *Manager) Flush(ctx context.Context, id string) error {
	m.mu.Lock()
	a, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return errs.Newf(errs.NotFound, "session %q is not active", id).WithComponent("session")
	}
	return m.flush(ctx, a)
}

func (m *Manager) flush(ctx context.Context, a *active) error {
	messages := m.context.GetRawMessages(a.meta.ID)

	for _, msg := range messages[a.persistedCount:] {
		data, err := json.Marshal(msg)
		if err != nil {
			return errs.Wrap(errs.Internal, err, "encode message").WithComponent("session")
		}
		if err := m.store.Append(ctx, messagesKeyPrefix+a.meta.ID, data); err != nil {
			return errs.Wrap(errs.Backend, err, "append message").WithComponent("session")
		}
	}
	a.persistedCount = len(messages)

	a.meta.MessageCount = len(messages)
	a.meta.LastActiveAt = time.Now()
	a.meta.ConversationHistory = messages

	return m.persistMetadata(ctx, a.meta)
}

func (m *Manager) persistMetadata(ctx context.Context, meta *Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encode session metadata").WithComponent("session")
	}
	if err := m.store.Set(ctx, metadataKeyPrefix+meta.ID, data); err != nil {
		return errs.Wrap(errs.Backend, err, "persist session metadata").WithComponent("session")
	}
	return nil
}
