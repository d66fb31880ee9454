package llm

import "github.com/kadirpekel/memento/pkg/errs"

// Config configures a single provider client. Type selects which backend
// NewFromConfig builds; the remaining fields apply across backends, with
// per-backend defaults filled in by SetDefaults.
type Config struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Host        string  `yaml:"host"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"` // seconds
	MaxRetries  int     `yaml:"max_retries"`
	RetryDelay  int     `yaml:"retry_delay"` // seconds

	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CACertificate      string `yaml:"ca_certificate"`
}

var defaultHosts = map[string]string{
	"openai":    "https://api.openai.com/v1",
	"anthropic": "https://api.anthropic.com",
	"ollama":    "http://localhost:11434",
}

var defaultModels = map[string]string{
	"openai":    "gpt-4o",
	"anthropic": "claude-sonnet-4-20250514",
	"gemini":    "gemini-2.0-flash",
	"ollama":    "llama3.1",
}

// SetDefaults fills unset fields with per-Type defaults.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = defaultModels[c.Type]
	}
	if c.Host == "" {
		c.Host = defaultHosts[c.Type]
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1
	}
}

// Validate reports whether the config is usable, after defaults are applied.
func (c *Config) Validate() error {
	switch c.Type {
	case "openai", "anthropic", "gemini", "ollama":
	default:
		return errs.Newf(errs.Validation, "unsupported provider type %q", c.Type).WithComponent("llm")
	}
	if c.Type != "ollama" && c.APIKey == "" {
		return errs.Newf(errs.Validation, "provider %q requires an api key", c.Type).WithComponent("llm")
	}
	return nil
}
