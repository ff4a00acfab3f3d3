// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// providerDefaults 各供应商的默认地址、模型与密钥环境变量。
var providerDefaults = map[string]struct {
	baseURL    string
	chatModel  string
	embedModel string
	keyEnv     string
}{
	"openai":    {"https://api.openai.com/v1", "gpt-4-turbo-preview", "text-embedding-3-small", "OPENAI_API_KEY"},
	"anthropic": {"https://api.anthropic.com/v1", "claude-3-sonnet-20240229", "", "ANTHROPIC_API_KEY"},
	"gemini":    {"https://generativelanguage.googleapis.com/v1beta", "gemini-pro", "text-embedding-004", "GOOGLE_API_KEY"},
	"google":    {"https://generativelanguage.googleapis.com/v1beta", "gemini-pro", "text-embedding-004", "GOOGLE_API_KEY"},
	"deepseek":  {"https://api.deepseek.com/v1", "deepseek-chat", "", "DEEPSEEK_API_KEY"},
	"ollama":    {"http://localhost:11434", "llama3.1", "nomic-embed-text", ""},
	"local":     {"", "", "hashing-bow", ""},
}

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, anthropic, gemini, ollama, deepseek, local）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，为空时读取供应商对应的环境变量。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Dimension 本地向量维度（仅 local 供应商）。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Resilient 是否包装重试与熔断。
	Resilient bool `json:"resilient" mapstructure:"resilient"`

	embedding bool
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		Resilient:  true,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "local",
		Dimension:  384,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		Resilient:  true,
		embedding:  true,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai, anthropic, gemini, ollama, deepseek, local).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL. Empty uses the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key. Empty reads the provider's key environment variable.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name. Empty uses the provider default.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension for the local provider.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	fs.BoolVar(&o.Resilient, p+"resilient", o.Resilient, "Wrap the provider with retry and circuit breaker.")
}

// Complete 按供应商补齐地址、模型与密钥。
func (o *ProviderOptions) Complete() error {
	d, ok := providerDefaults[o.Provider]
	if !ok {
		return nil
	}
	if o.BaseURL == "" {
		o.BaseURL = d.baseURL
	}
	if o.Model == "" {
		if o.embedding {
			o.Model = d.embedModel
		} else {
			o.Model = d.chatModel
		}
	}
	if o.APIKey == "" && d.keyEnv != "" {
		o.APIKey = os.Getenv(d.keyEnv)
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	d, ok := providerDefaults[o.Provider]
	switch {
	case !ok:
		errs = append(errs, fmt.Errorf("unsupported llm provider %q", o.Provider))
	case o.embedding && o.Provider != "local" && d.embedModel == "" && o.Model == "":
		errs = append(errs, fmt.Errorf("provider %q has no default embedding model", o.Provider))
	case !o.embedding && o.Provider == "local":
		errs = append(errs, fmt.Errorf("local provider only supports embeddings"))
	case d.keyEnv != "" && o.APIKey == "":
		errs = append(errs, fmt.Errorf("api-key is required for %s provider (or set %s)", o.Provider, d.keyEnv))
	}
	if o.Provider != "local" && o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Provider == "local" && o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("dimension must be positive for local embeddings"))
	}
	return errs
}
