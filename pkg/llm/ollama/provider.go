// Package ollama 提供本地 Ollama 供应商实现，同时支持 Embedding 与文本生成。
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// ProviderName 是 Ollama 供应商的名称标识符。
const ProviderName = "ollama"

func init() {
	llm.Register(ProviderName, llm.Registration{Embed: llm.Embedder(New), Chat: llm.Chatter(New)})
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.1",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// New 创建 Ollama 供应商，本地服务无需 API 密钥。
func New(s llm.Settings) (*Provider, error) {
	d := DefaultConfig()
	return NewWithConfig(&Config{
		BaseURL:    llm.Or(s.BaseURL, d.BaseURL),
		EmbedModel: llm.Or(s.Model, d.EmbedModel),
		ChatModel:  llm.Or(s.Model, d.ChatModel),
		Timeout:    llm.Or(s.Timeout, d.Timeout),
		MaxRetries: llm.Or(s.MaxRetries, d.MaxRetries),
	}), nil
}

// NewWithConfig 使用完整配置创建 Ollama 供应商。
func NewWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embedResp embedResponse
	req := embedRequest{Model: p.config.EmbedModel, Input: texts}
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/embed", nil, req, &embedResp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(texts), len(embedResp.Embeddings))
	}

	return embedResp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	reqBody := generateRequest{
		Model:   p.config.ChatModel,
		Prompt:  prompt,
		System:  llm.DefaultSystemPrompt,
		Options: generateOptions{Temperature: temperature},
	}

	var genResp generateResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/generate", nil, reqBody, &genResp); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}

	return &llm.GenerateResponse{
		Content: genResp.Response,
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     genResp.PromptEvalCount,
			CompletionTokens: genResp.EvalCount,
			TotalTokens:      genResp.PromptEvalCount + genResp.EvalCount,
		},
	}, nil
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if err := p.client.DoJSON(req, nil); err != nil {
		return fmt.Errorf("ollama unavailable: %w", err)
	}
	return nil
}
