// Package deepseek 提供 DeepSeek Chat 供应商实现。
// DeepSeek 兼容 OpenAI Chat Completions 协议，但不提供 Embedding API。
package deepseek

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// ProviderName 是 DeepSeek 供应商的名称标识符。
const ProviderName = "deepseek"

func init() {
	llm.Register(ProviderName, llm.Registration{Chat: llm.Chatter(New)})
}

// Config DeepSeek 供应商配置。
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.deepseek.com/v1",
		ChatModel:  "deepseek-chat",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider DeepSeek 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// New 按统一参数创建 DeepSeek 供应商。
func New(s llm.Settings) (*Provider, error) {
	if s.APIKey == "" {
		return nil, errors.New("deepseek: api key is required")
	}
	d := DefaultConfig()
	return NewWithConfig(&Config{
		BaseURL:    llm.Or(s.BaseURL, d.BaseURL),
		APIKey:     s.APIKey,
		ChatModel:  llm.Or(s.Model, d.ChatModel),
		Timeout:    llm.Or(s.Timeout, d.Timeout),
		MaxRetries: llm.Or(s.MaxRetries, d.MaxRetries),
	}), nil
}

// NewWithConfig 使用完整配置创建 DeepSeek 供应商。
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

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    llm.PromptMessages(prompt),
		Temperature: temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}

	var chatResp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", headers, reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("deepseek chat: %w", err)
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
