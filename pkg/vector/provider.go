package vector

import (
	"context"

	"github.com/kadirpekel/memento/pkg/errs"
)

var errNilProvider = errs.New(errs.Backend, "no vector provider configured").WithComponent("NilProvider")

// Result is a single vector search hit. Vector is populated only by
// backends that return embeddings with their search results (Qdrant,
// Pinecone); callers that only need the match itself can ignore it.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Provider is the low-level per-call vector database client every backend
// implements. Collection and filter are passed per call because the
// underlying SDKs (chromem, Qdrant, Pinecone) are collection-multiplexed;
// Manager binds a single collection and dimension at construction time to
// satisfy the higher-level insert/update/delete/search contract.
type Provider interface {
	Name() string
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Close() error
}

// NilProvider is a Provider whose data calls all fail (DeleteCollection and
// Close succeed). It is returned for a nil configuration; Manager.Connect
// then falls back to the embedded chromem provider, since its
// CreateCollection fails.
type NilProvider struct{}

func (NilProvider) Name() string { return "nil" }
func (NilProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	return errNilProvider
}
func (NilProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return nil, errNilProvider
}
func (NilProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	return nil, errNilProvider
}
func (NilProvider) Delete(ctx context.Context, collection, id string) error { return errNilProvider }
func (NilProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return errNilProvider
}
func (NilProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return errNilProvider
}
func (NilProvider) DeleteCollection(ctx context.Context, collection string) error { return nil }
func (NilProvider) Close() error                                                 { return nil }
