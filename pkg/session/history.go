package session

import (
	"context"
	"encoding/json"

	"github.com/kadirpekel/memento/pkg/contextmgr"
	"github.com/kadirpekel/memento/pkg/errs"
)

// GetHistory returns a session's full message history plus where it was
// recovered from. Concurrent calls for the same session share a single
// in-flight fetch.
func (m *Manager) GetHistory(ctx context.Context, id string) ([]contextmgr.Message, Source, error) {
	m.mu.Lock()
	if a, ok := m.active[id]; ok {
		meta := a.meta
		m.mu.Unlock()
		messages := m.context.GetRawMessages(id)
		if len(messages) > 0 {
			return messages, SourceMemory, nil
		}
		return m.getHistoryUncached(ctx, id, meta)
	}
	m.mu.Unlock()

	v, err, _ := m.history.Do("history_"+id, func() (any, error) {
		messages, source, err := m.getHistoryUncached(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		return historyResult{messages, source}, nil
	})
	if err != nil {
		return nil, SourceEmpty, err
	}
	r := v.(historyResult)
	return r.messages, r.source, nil
}

type historyResult struct {
	messages []contextmgr.Message
	source   Source
}

// getHistoryUncached fetches persisted history for a session not held in
// memory, preferring the normalized messages:<id> list over the
// conversationHistory snapshot embedded in session metadata. meta may be
// supplied by the caller (already loaded) or left nil to be fetched here.
func (m *Manager) getHistoryUncached(ctx context.Context, id string, meta *Metadata) ([]contextmgr.Message, Source, error) {
	items, err := m.store.GetRange(ctx, messagesKeyPrefix+id, 0, fetchAllCount)
	if err != nil {
		return nil, SourceEmpty, errs.Wrap(errs.Backend, err, "fetch session messages").WithComponent("session")
	}
	if len(items) > 0 {
		messages := make([]contextmgr.Message, 0, len(items))
		for _, item := range items {
			var msg contextmgr.Message
			if err := json.Unmarshal(item, &msg); err != nil {
				continue
			}
			messages = append(messages, msg)
		}
		return messages, SourceDatabase, nil
	}

	if meta == nil {
		data, found, err := m.store.Get(ctx, metadataKeyPrefix+id)
		if err != nil {
			return nil, SourceEmpty, errs.Wrap(errs.Backend, err, "fetch session metadata").WithComponent("session")
		}
		if found {
			var loaded Metadata
			if err := json.Unmarshal(data, &loaded); err == nil {
				meta = &loaded
			}
		}
	}
	if meta != nil && len(meta.ConversationHistory) > 0 {
		return meta.ConversationHistory, SourceDatabase, nil
	}

	return nil, SourceEmpty, nil
}
