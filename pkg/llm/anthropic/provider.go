// Package anthropic 提供 Anthropic Messages API 供应商实现（仅文本生成）。
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// ProviderName 是 Anthropic 供应商的名称标识符。
const ProviderName = "anthropic"

// APIVersion anthropic-version 请求头取值。
const APIVersion = "2023-06-01"

func init() {
	llm.Register(ProviderName, llm.Registration{Chat: llm.Chatter(New)})
}

// Config Anthropic 供应商配置。
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int

	// MaxTokens 单次生成上限，Messages API 要求必填。
	MaxTokens int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.anthropic.com/v1",
		ChatModel:  "claude-3-sonnet-20240229",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		MaxTokens:  2000,
	}
}

// Provider Anthropic 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// New 按统一参数创建 Anthropic 供应商。
func New(s llm.Settings) (*Provider, error) {
	if s.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	d := DefaultConfig()
	return NewWithConfig(&Config{
		BaseURL:    llm.Or(s.BaseURL, d.BaseURL),
		APIKey:     s.APIKey,
		ChatModel:  llm.Or(s.Model, d.ChatModel),
		Timeout:    llm.Or(s.Timeout, d.Timeout),
		MaxRetries: llm.Or(s.MaxRetries, d.MaxRetries),
		MaxTokens:  llm.Or(s.MaxTokens, d.MaxTokens),
	}), nil
}

// NewWithConfig 使用完整配置创建 Anthropic 供应商。
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

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	reqBody := messagesRequest{
		Model:       p.config.ChatModel,
		MaxTokens:   p.config.MaxTokens,
		System:      llm.DefaultSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: temperature,
	}
	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": APIVersion,
	}

	var msgResp messagesResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/messages", headers, reqBody, &msgResp); err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("未返回响应内容")
	}

	return &llm.GenerateResponse{
		Content: sb.String(),
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}
