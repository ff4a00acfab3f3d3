// Package gemini 提供 Google Gemini LLM 供应商实现。
// 注册名称为 gemini，别名 google。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

const (
	// ProviderName 是 Gemini 供应商的名称标识符。
	ProviderName = "gemini"
	// AliasName 是 Gemini 的别名。
	AliasName = "google"
)

func init() {
	r := llm.Registration{Embed: llm.Embedder(New), Chat: llm.Chatter(New)}
	llm.Register(ProviderName, r)
	llm.Register(AliasName, r)
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string

	// APIKey Google AI API 密钥。
	APIKey string

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string

	// ChatModel 用于对话的模型。
	ChatModel string

	Timeout    time.Duration
	MaxRetries int

	// MaxOutputTokens 最大输出 token 数。
	MaxOutputTokens int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel:      "text-embedding-004",
		ChatModel:       "gemini-pro",
		Timeout:         120 * time.Second,
		MaxRetries:      3,
		MaxOutputTokens: 2048,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// New 按统一参数创建 Gemini 供应商。
func New(s llm.Settings) (*Provider, error) {
	if s.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	d := DefaultConfig()
	return NewWithConfig(&Config{
		BaseURL:         llm.Or(s.BaseURL, d.BaseURL),
		APIKey:          s.APIKey,
		EmbedModel:      llm.Or(s.Model, d.EmbedModel),
		ChatModel:       llm.Or(s.Model, d.ChatModel),
		Timeout:         llm.Or(s.Timeout, d.Timeout),
		MaxRetries:      llm.Or(s.MaxRetries, d.MaxRetries),
		MaxOutputTokens: llm.Or(s.MaxTokens, d.MaxOutputTokens),
	}), nil
}

// NewWithConfig 使用完整配置创建 Gemini 供应商。
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

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type embedContentRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入（batchEmbedContents）。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := "models/" + p.config.EmbedModel
	reqBody := embedRequest{Requests: make([]embedContentRequest, len(texts))}
	for i, text := range texts {
		reqBody.Requests[i] = embedContentRequest{
			Model:   model,
			Content: content{Parts: []part{{Text: text}}},
		}
	}

	var embedResp embedResponse
	endpoint := fmt.Sprintf("%s/%s:batchEmbedContents", p.config.BaseURL, model)
	if err := p.client.PostJSON(ctx, endpoint, p.headers(), reqBody, &embedResp); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: expected %d vectors, got %d", len(texts), len(embedResp.Embeddings))
	}

	embeddings := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
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
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	reqBody := generateRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		SystemInstruction: &content{Parts: []part{{Text: llm.DefaultSystemPrompt}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: p.config.MaxOutputTokens,
		},
	}

	var genResp generateResponse
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.config.BaseURL, p.config.ChatModel)
	if err := p.client.PostJSON(ctx, endpoint, p.headers(), reqBody, &genResp); err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("未返回响应内容")
	}

	var sb strings.Builder
	for _, pt := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}

	return &llm.GenerateResponse{
		Content: sb.String(),
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.config.APIKey}
}
