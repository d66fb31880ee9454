package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/errs"
)

func TestHostedProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hostedEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Input)

		json.NewEncoder(w).Encode(hostedEmbedResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
		})
	}))
	defer srv.Close()

	p, err := NewHostedProvider(HTTPConfig{APIKey: "sk-test", Host: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHostedProviderPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	p, err := NewHostedProvider(HTTPConfig{APIKey: "sk-test", Host: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestLocalProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		json.NewEncoder(w).Encode(localEmbedResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer srv.Close()

	p, err := NewLocalProvider(HTTPConfig{Host: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

type fakeProvider struct {
	vec []float32
	err error
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeProvider) Dimension() int    { return 3 }
func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Close() error      { return nil }

func TestManagerDisablesAfterPersistentFailure(t *testing.T) {
	fake := &fakeProvider{err: assertErr("connection refused")}
	m := NewManager(fake)

	_, err := m.Embed(context.Background(), "hello")
	assert.Error(t, err)

	disabled, reason := m.Disabled()
	assert.True(t, disabled)
	assert.NotEmpty(t, reason)

	_, err = m.Embed(context.Background(), "again")
	assert.True(t, errs.Is(err, errs.Capability))
}

func TestManagerPassesThroughSuccess(t *testing.T) {
	fake := &fakeProvider{vec: []float32{0.5, 0.5, 0.5}}
	m := NewManager(fake)

	vec, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, vec)

	disabled, _ := m.Disabled()
	assert.False(t, disabled)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
