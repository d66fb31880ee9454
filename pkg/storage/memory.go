package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kadirpekel/memento/pkg/errs"
)

// MemoryStore is an in-process map-backed Store. It is always available and
// is the default when no driver is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	connected bool
	values    map[string][]byte
	lists     map[string][][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][][]byte),
	}
}

func (s *MemoryStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *MemoryStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *MemoryStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MemoryStore) requireConnected() error {
	if !s.IsConnected() {
		return errs.New(errs.Backend, "storage not connected").WithComponent("MemoryStore")
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.requireConnected(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.lists, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
		}
	}
	for k := range s.lists {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, key string, item []byte) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	cp := make([]byte, len(item))
	copy(cp, item)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], cp)
	return nil
}

func (s *MemoryStore) GetRange(ctx context.Context, key string, start, count int) ([][]byte, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	if start < 0 || count < 0 {
		return nil, errs.New(errs.Validation, "start and count must be non-negative").WithComponent("MemoryStore")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.lists[key]
	if start >= len(items) {
		return [][]byte{}, nil
	}
	end := start + count
	if end > len(items) {
		end = len(items)
	}

	out := make([][]byte, 0, end-start)
	for _, v := range items[start:end] {
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, cp)
	}
	return out, nil
}
