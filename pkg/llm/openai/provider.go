// Package openai 对接 OpenAI 及兼容其协议的服务（Azure OpenAI、LocalAI 等），
// 注册后可同时作为 Embedding 与 Chat 供应商：
//
//	import _ "github.com/kart-io/agriqa/pkg/llm/openai"
//
//	chat, err := llm.NewChatProvider("openai", llm.Settings{APIKey: key})
//	resp, err := chat.Generate(ctx, "Which state grows the most rice?", llm.DefaultTemperature)
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.Register(ProviderName, llm.Registration{Embed: llm.Embedder(New), Chat: llm.Chatter(New)})
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可设置为兼容 API 地址。
	BaseURL string

	// APIKey API 密钥。
	APIKey string

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string

	// ChatModel 用于对话的模型。
	ChatModel string

	// Timeout 请求超时时间。
	Timeout time.Duration

	// MaxRetries 最大重试次数。
	MaxRetries int

	// Organization 组织 ID（可选）。
	Organization string

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4-turbo-preview",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// New 按统一参数创建 OpenAI 供应商。Model 同时用于 Embedding 与 Chat，
// 为空时两者各取默认模型。
func New(s llm.Settings) (*Provider, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	d := DefaultConfig()
	return NewWithConfig(&Config{
		BaseURL:      llm.Or(s.BaseURL, d.BaseURL),
		APIKey:       s.APIKey,
		EmbedModel:   llm.Or(s.Model, d.EmbedModel),
		ChatModel:    llm.Or(s.Model, d.ChatModel),
		Timeout:      llm.Or(s.Timeout, d.Timeout),
		MaxRetries:   llm.Or(s.MaxRetries, d.MaxRetries),
		Organization: s.Organization,
		MaxTokens:    s.MaxTokens,
	}), nil
}

// NewWithConfig 使用完整配置创建 OpenAI 供应商。
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

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embedResp embeddingResponse
	req := embeddingRequest{Model: p.config.EmbedModel, Input: texts}
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/embeddings", p.headers(), req, &embedResp); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	// 按 index 归位确保顺序正确
	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector for input %d", i)
		}
	}

	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, temperature float64) (*llm.GenerateResponse, error) {
	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: temperature,
	}

	var chatResp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", p.headers(), reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("未返回响应内容")
	}

	return &llm.GenerateResponse{
		Content: chatResp.Choices[0].Message.Content,
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	return p.Chat(ctx, llm.PromptMessages(prompt), temperature)
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	if p.config.Organization != "" {
		h["OpenAI-Organization"] = p.config.Organization
	}
	return h
}
