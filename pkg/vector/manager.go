package vector

import (
	"context"
	"sync"

	"github.com/kadirpekel/memento/pkg/errs"
)

// Info reports a Manager's effective configuration, including whether it
// fell back to the embedded provider after the configured backend failed to
// connect.
type Info struct {
	Name       string
	Collection string
	Dimension  int
	Fallback   bool
}

// Manager binds a Provider to a fixed collection name and dimension and
// exposes the insert/update/delete/search contract, transparently
// substituting the embedded chromem provider if the configured backend
// fails to connect.
type Manager struct {
	cfg        *ProviderConfig
	collection string
	dimension  int

	mu        sync.RWMutex
	provider  Provider
	connected bool
	fallback  bool
	ids       map[string]struct{}
}

// NewManager builds a Manager bound to collection/dimension. It does not
// connect; call Connect before use.
func NewManager(cfg *ProviderConfig, collection string, dimension int) (*Manager, error) {
	if collection == "" {
		return nil, errs.New(errs.Validation, "collection name is required")
	}
	if dimension <= 0 {
		return nil, errs.New(errs.Validation, "dimension must be positive")
	}
	return &Manager{cfg: cfg, collection: collection, dimension: dimension, ids: make(map[string]struct{})}, nil
}

// Connect establishes the configured backend, substituting the embedded
// chromem provider with the same collection and dimension if it fails.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	provider, err := newRawProvider(m.cfg)
	fallback := false
	if err != nil {
		provider, err = NewChromemProvider(ChromemConfig{})
		if err != nil {
			return errs.Wrap(errs.Backend, err, "fall back to embedded vector provider").WithComponent("VectorManager")
		}
		fallback = true
	}

	if err := provider.CreateCollection(ctx, m.collection, m.dimension); err != nil && !fallback {
		// The configured backend rejected the collection; fall back rather
		// than fail the whole runtime.
		fb, fbErr := NewChromemProvider(ChromemConfig{})
		if fbErr != nil {
			return errs.Wrap(errs.Backend, err, "connect vector provider").WithComponent("VectorManager")
		}
		if err := fb.CreateCollection(ctx, m.collection, m.dimension); err != nil {
			return errs.Wrap(errs.Backend, err, "fall back to embedded vector provider").WithComponent("VectorManager")
		}
		provider = fb
		fallback = true
	}

	m.provider = provider
	m.fallback = fallback
	m.connected = true
	return nil
}

func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return nil
	}
	err := m.provider.Close()
	m.connected = false
	if err != nil {
		return errs.Wrap(errs.Backend, err, "disconnect vector provider").WithComponent("VectorManager")
	}
	return nil
}

func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Manager) GetInfo() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name := "disconnected"
	if m.provider != nil {
		name = m.provider.Name()
	}
	return Info{Name: name, Collection: m.collection, Dimension: m.dimension, Fallback: m.fallback}
}

func (m *Manager) checkDimension(vector []float32) error {
	if len(vector) != m.dimension {
		return errs.Newf(errs.Validation, "vector has dimension %d, collection %q expects %d", len(vector), m.collection, m.dimension).WithComponent("VectorManager")
	}
	return nil
}

func (m *Manager) ready() (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected || m.provider == nil {
		return nil, errs.New(errs.Backend, "vector manager not connected").WithComponent("VectorManager")
	}
	return m.provider, nil
}

// Insert adds new vectors. Lengths of vectors, ids, and payloads must match;
// ids must be unique within the collection.
func (m *Manager) Insert(ctx context.Context, vectors [][]float32, ids []string, payloads []map[string]any) error {
	if len(vectors) != len(ids) || len(vectors) != len(payloads) {
		return errs.New(errs.Validation, "vectors, ids, and payloads must have equal length").WithComponent("VectorManager")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return errs.Newf(errs.Conflict, "duplicate id %q in insert batch", id).WithComponent("VectorManager")
		}
		seen[id] = struct{}{}
	}
	m.mu.RLock()
	for _, id := range ids {
		if _, exists := m.ids[id]; exists {
			m.mu.RUnlock()
			return errs.Newf(errs.Conflict, "id %q already exists in collection %q", id, m.collection).WithComponent("VectorManager")
		}
	}
	m.mu.RUnlock()

	provider, err := m.ready()
	if err != nil {
		return err
	}
	for i, v := range vectors {
		if err := m.checkDimension(v); err != nil {
			return err
		}
		if err := provider.Upsert(ctx, m.collection, ids[i], v, payloads[i]); err != nil {
			return errs.Wrap(errs.Backend, err, "insert vector").WithComponent("VectorManager")
		}
	}

	m.mu.Lock()
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

// Update replaces the vector and payload for an existing id. It fails if
// the id is absent.
func (m *Manager) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if err := m.checkDimension(vector); err != nil {
		return err
	}
	m.mu.RLock()
	_, exists := m.ids[id]
	m.mu.RUnlock()
	if !exists {
		return errs.Newf(errs.NotFound, "id %q not found in collection %q", id, m.collection).WithComponent("VectorManager")
	}

	provider, err := m.ready()
	if err != nil {
		return err
	}
	if err := provider.Upsert(ctx, m.collection, id, vector, payload); err != nil {
		return errs.Wrap(errs.Backend, err, "update vector").WithComponent("VectorManager")
	}
	return nil
}

// Delete removes an id. It is idempotent: deleting an absent id is not an
// error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	provider, err := m.ready()
	if err != nil {
		return err
	}
	if err := provider.Delete(ctx, m.collection, id); err != nil {
		return errs.Wrap(errs.Backend, err, "delete vector").WithComponent("VectorManager")
	}

	m.mu.Lock()
	delete(m.ids, id)
	m.mu.Unlock()
	return nil
}

// Search finds the k nearest neighbors to queryVector, optionally filtered
// by payload and thresholded by minimum cosine score.
func (m *Manager) Search(ctx context.Context, queryVector []float32, k int, filter map[string]any, threshold float32) ([]Result, error) {
	if err := m.checkDimension(queryVector); err != nil {
		return nil, err
	}
	provider, err := m.ready()
	if err != nil {
		return nil, err
	}

	results, err := provider.SearchWithFilter(ctx, m.collection, queryVector, k, filter)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "search vectors").WithComponent("VectorManager")
	}

	if threshold <= 0 {
		return results, nil
	}
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}
