package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/storage"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, *contextmgr.Manager) {
	t.Helper()

	store := storage.NewMemoryStore()
	require.NoError(t, store.Connect(context.Background()))

	ctxmgr, err := contextmgr.NewManager(contextmgr.Config{}, nil)
	require.NoError(t, err)

	mgr, err := NewManager(cfg, store, ctxmgr)
	require.NoError(t, err)

	return mgr, ctxmgr
}

func TestCreateGeneratesIDWhenEmpty(t *testing.T) {
	mgr, _ := newTestManager(t, Config{})

	meta, err := mgr.Create(context.Background(), "", LLMConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
}

func TestCreateWithExistingIDFails(t *testing.T) {
	mgr, _ := newTestManager(t, Config{})
	ctx := context.Background()

	_, err := mgr.Create(ctx, "s1", LLMConfig{})
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "s1", LLMConfig{})
	require.Error(t, err)
}

func TestLoadNonExistentFallsBackToCreate(t *testing.T) {
	mgr, _ := newTestManager(t, Config{})

	meta, err := mgr.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", meta.ID)
}

func TestDeleteRejectsCurrentSession(t *testing.T) {
	mgr, _ := newTestManager(t, Config{})
	ctx := context.Background()

	meta, err := mgr.Create(ctx, "s1", LLMConfig{})
	require.NoError(t, err)
	mgr.SetCurrent(meta.ID)

	err = mgr.Delete(ctx, meta.ID)
	require.Error(t, err)
}

func TestListFiltersPhantomSessions(t *testing.T) {
	mgr, ctxmgr := newTestManager(t, Config{})
	ctx := context.Background()

	_, err := mgr.Create(ctx, "empty", LLMConfig{})
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "has-messages", LLMConfig{})
	require.NoError(t, err)
	ctxmgr.AddUserMessage("has-messages", "hi", "")
	require.NoError(t, mgr.Flush(ctx, "has-messages"))

	sessions, err := mgr.List(ctx)
	require.NoError(t, err)

	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "has-messages")
	assert.NotContains(t, ids, "empty")
}

func TestFlushThenGetHistoryRecoversFromDatabaseAfterEviction(t *testing.T) {
	mgr, ctxmgr := newTestManager(t, Config{MaxActiveSessions: 1})
	ctx := context.Background()

	_, err := mgr.Create(ctx, "s1", LLMConfig{})
	require.NoError(t, err)
	ctxmgr.AddUserMessage("s1", "hello", "")
	ctxmgr.AddAssistantMessage("s1", "hi there", nil)
	require.NoError(t, mgr.Flush(ctx, "s1"))

	// Creating a second session evicts s1 (capacity 1), which flushes it
	// again and clears its in-memory history.
	_, err = mgr.Create(ctx, "s2", LLMConfig{})
	require.NoError(t, err)

	messages, source, err := mgr.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, source)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestGetBatchSessionMetadataSkipsMissingIDs(t *testing.T) {
	mgr, _ := newTestManager(t, Config{})
	ctx := context.Background()

	_, err := mgr.Create(ctx, "s1", LLMConfig{})
	require.NoError(t, err)

	result, err := mgr.GetBatchSessionMetadata(ctx, []string{"s1", "missing"})
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Contains(t, result, "s1")
}
