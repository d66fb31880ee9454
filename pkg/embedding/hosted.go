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

// HostedProvider calls a hosted HTTP embedding API with an OpenAI-shaped
// request/response.
type HostedProvider struct {
	client    *httpclient.Client
	apiKey    string
	baseURL   string
	model     string
	dimension int
}

type hostedEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type hostedEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

var defaultDimensionsByModel = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewHostedProvider creates a HostedProvider from configuration.
func NewHostedProvider(cfg HTTPConfig) (*HostedProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = defaultDimensionsByModel[model]
		if dimension == 0 {
			dimension = 1536
		}
	}
	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
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
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &HostedProvider{
		client:    client,
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
	}, nil
}

func (p *HostedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(hostedEmbedRequest{Model: p.model, Input: []string{text}})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal embed request").WithComponent("HostedProvider")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build embed request").WithComponent("HostedProvider")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "send embed request").WithComponent("HostedProvider")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, err, "read embed response").WithComponent("HostedProvider")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.Provider, "embedding API returned status %d: %s", resp.StatusCode, string(respBody)).WithComponent("HostedProvider")
	}

	var parsed hostedEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.Wrap(errs.Provider, err, "decode embed response").WithComponent("HostedProvider")
	}
	if len(parsed.Data) == 0 {
		return nil, errs.New(errs.Provider, "embedding API returned no data").WithComponent("HostedProvider")
	}
	return parsed.Data[0].Embedding, nil
}

func (p *HostedProvider) Dimension() int    { return p.dimension }
func (p *HostedProvider) ModelName() string { return p.model }
func (p *HostedProvider) Close() error      { return nil }

var _ Provider = (*HostedProvider)(nil)
