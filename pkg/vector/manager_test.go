package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&ProviderConfig{Type: ProviderChromem}, "memories", 3)
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m
}

func TestManagerInsertAndSearch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.Insert(ctx,
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"a", "b"},
		[]map[string]any{{"content": "alpha"}, {"content": "beta"}},
	)
	require.NoError(t, err)

	results, err := m.Search(ctx, []float32{1, 0, 0}, 2, nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
}

func TestManagerInsertRejectsMismatchedLengths(t *testing.T) {
	m := newTestManager(t)
	err := m.Insert(context.Background(), [][]float32{{1, 0, 0}}, []string{"a", "b"}, nil)
	assert.Error(t, err)
}

func TestManagerInsertRejectsDuplicateIDs(t *testing.T) {
	m := newTestManager(t)
	err := m.Insert(context.Background(),
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"dup", "dup"},
		[]map[string]any{{}, {}},
	)
	assert.Error(t, err)
}

func TestManagerUpdateFailsIfAbsent(t *testing.T) {
	m := newTestManager(t)
	err := m.Update(context.Background(), "ghost", []float32{1, 0, 0}, map[string]any{})
	assert.Error(t, err)
}

func TestManagerUpdateSucceedsIfPresent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, [][]float32{{1, 0, 0}}, []string{"a"}, []map[string]any{{"content": "alpha"}}))
	err := m.Update(ctx, "a", []float32{0, 1, 0}, map[string]any{"content": "alpha-v2"})
	assert.NoError(t, err)
}

func TestManagerDeleteIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, [][]float32{{1, 0, 0}}, []string{"a"}, []map[string]any{{}}))
	assert.NoError(t, m.Delete(ctx, "a"))
	assert.NoError(t, m.Delete(ctx, "a"))
}

func TestManagerSearchRejectsDimensionMismatch(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Search(context.Background(), []float32{1, 0}, 1, nil, 0)
	assert.Error(t, err)
}

func TestManagerGetInfoReportsFallbackOnBadConfig(t *testing.T) {
	m, err := NewManager(&ProviderConfig{Type: ProviderQdrant, Qdrant: &QdrantConfig{Host: "127.0.0.1", Port: 1}}, "memories", 3)
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	info := m.GetInfo()
	assert.True(t, info.Fallback)
	assert.Equal(t, "chromem", info.Name)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	m := newTestManager(t)
	require.NoError(t, reg.Register("primary", m))
	assert.Error(t, reg.Register("primary", m))
	_, ok := reg.Get("primary")
	assert.True(t, ok)
}
