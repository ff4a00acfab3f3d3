// Package llm 提供统一的 LLM 供应商抽象层。
// 支持 Embedding 和 Chat 使用不同供应商的模型。
package llm

import (
	"context"
	"time"
)

// Settings 是创建供应商时的统一参数。零值字段由各供应商取默认值，
// 不适用的字段（如 local 的 APIKey）被忽略。
type Settings struct {
	BaseURL      string
	APIKey       string
	Model        string
	Organization string

	// Dimension 向量维度，仅本地供应商使用。
	Dimension int
	MaxTokens int

	// MaxRetries 为 0 时使用供应商默认值。
	MaxRetries int
	Timeout    time.Duration
}

// Or returns v unless it is the zero value, in which case def.
func Or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// DefaultSystemPrompt 所有生成请求使用的系统提示词。
const DefaultSystemPrompt = "You are a helpful assistant that provides accurate, data-driven answers."

// DefaultTemperature 默认采样温度。
const DefaultTemperature = 0.3

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义文本生成供应商接口。
type ChatProvider interface {
	// Generate 根据提示生成文本（单轮），系统提示词固定为 DefaultSystemPrompt。
	Generate(ctx context.Context, prompt string, temperature float64) (*GenerateResponse, error)

	// Name 返回供应商名称。
	Name() string
}

// GenerateResponse 生成结果。
type GenerateResponse struct {
	Content    string      `json:"content"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
}

// TokenUsage Token 使用统计。
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessages 返回带默认系统提示词的单轮消息。
func PromptMessages(prompt string) []Message {
	return []Message{
		{Role: RoleSystem, Content: DefaultSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}
}
