package llm

import (
	"net/http"
	"time"

	"github.com/kadirpekel/memento/pkg/httpclient"
	"github.com/kadirpekel/memento/pkg/toolmgr"
)

func newHTTPClient(cfg Config, headerParser httpclient.HeaderParser) *httpclient.Client {
	var tlsConfig *httpclient.TLSConfig
	if cfg.InsecureSkipVerify || cfg.CACertificate != "" {
		tlsConfig = &httpclient.TLSConfig{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			CACertificate:      cfg.CACertificate,
		}
	}

	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay) * time.Second),
	}
	if headerParser != nil {
		opts = append(opts, httpclient.WithHeaderParser(headerParser))
	}
	if tlsConfig != nil {
		opts = append(opts, httpclient.WithTLSConfig(tlsConfig))
	}
	return httpclient.New(opts...)
}

// functionSchema renders a descriptor's schema as a JSON-Schema object,
// defaulting to an empty-parameter object when the tool takes none.
func functionSchema(d toolmgr.Descriptor) map[string]any {
	if d.Schema != nil {
		return d.Schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
