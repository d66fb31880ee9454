package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/memento/pkg/errs"
	"github.com/kadirpekel/memento/pkg/httpclient"
)

// LocalProvider calls a self-hosted embedding endpoint shaped like Ollama's
// /api/embeddings: a model/prompt request, a single embedding response.
type LocalProvider struct {
	client    *httpclient.Client
	baseURL   string
	model     string
	dimension int
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewLocalProvider creates a LocalProvider from configuration.
func NewLocalProvider(cfg HTTPConfig) (*LocalProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(maxRetries),
	)

	return &LocalProvider{
		client:    client,
		baseURL:   cfg.Host,
		model:     model,
		dimension: dimension,
	}, nil
}

func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal embed request").WithComponent("LocalProvider")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build embed request").WithComponent("LocalProvider")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "send embed request").WithComponent("LocalProvider")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "read embed response").WithComponent("LocalProvider")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.Provider, "local embedding endpoint returned status %d: %s", resp.StatusCode, string(respBody)).WithComponent("LocalProvider")
	}

	var parsed localEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.Wrap(errs.Provider, err, "decode embed response").WithComponent("LocalProvider")
	}
	if len(parsed.Embedding) == 0 {
		return nil, errs.New(errs.Provider, "local embedding endpoint returned no embedding").WithComponent("LocalProvider")
	}
	return parsed.Embedding, nil
}

func (p *LocalProvider) Dimension() int    { return p.dimension }
func (p *LocalProvider) ModelName() string { return p.model }
func (p *LocalProvider) Close() error      { return nil }

var _ Provider = (*LocalProvider)(nil)
