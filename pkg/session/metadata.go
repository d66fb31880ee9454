package session

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/memento/pkg/errs"
)

// GetBatchSessionMetadata fetches metadata for every id concurrently, up
// to cfg.BatchConcurrency at a time. A fetch failure for one id is
// dropped from the result rather than failing the whole batch.
func (m *Manager) GetBatchSessionMetadata(ctx context.Context, ids []string) (map[string]Metadata, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]Metadata, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.BatchConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			meta, err := m.metadataFor(gctx, id)
			if err != nil {
				return nil
			}
			mu.Lock()
			out[id] = *meta
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // each goroutine swallows its own error; never partial-fails the batch
	return out, nil
}

func (m *Manager) metadataFor(ctx context.Context, id string) (*Metadata, error) {
	m.mu.Lock()
	if a, ok := m.active[id]; ok {
		meta := *a.meta
		m.mu.Unlock()
		return &meta, nil
	}
	m.mu.Unlock()

	data, found, err := m.store.Get(ctx, metadataKeyPrefix+id)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "fetch session metadata").WithComponent("session")
	}
	if !found {
		return nil, errs.Newf(errs.NotFound, "session %q not found", id).WithComponent("session")
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode session metadata").WithComponent("session")
	}
	return &meta, nil
}
