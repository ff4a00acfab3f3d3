// Package resilience 为 LLM 供应商加上重试与熔断。
//
// 每个包装器持有独立的熔断器，重试在熔断器之外：熔断打开后立即失败，
// 不再消耗重试次数。
package resilience

import (
	"context"

	"github.com/kart-io/agriqa/pkg/llm"
)

type guard struct {
	retry *RetryConfig
	cb    *CircuitBreaker
}

func newGuard(name string, retry *RetryConfig, cb *CircuitBreakerConfig) guard {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return guard{retry: retry, cb: NewCircuitBreaker(name, cb)}
}

// CircuitBreaker exposes the breaker for health checks and metrics.
func (g guard) CircuitBreaker() *CircuitBreaker {
	return g.cb
}

func call[T any](ctx context.Context, g guard, fn func() (T, error)) (T, error) {
	return Retry(ctx, g.retry, func() (T, error) {
		var out T
		err := g.cb.Execute(func() error {
			var err error
			out, err = fn()
			return err
		})
		return out, err
	})
}

// ResilientEmbeddingProvider wraps an EmbeddingProvider.
type ResilientEmbeddingProvider struct {
	guard
	provider llm.EmbeddingProvider
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// NewResilientEmbeddingProvider 创建带重试与熔断的 Embedding 供应商。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *ResilientEmbeddingProvider {
	return &ResilientEmbeddingProvider{
		guard:    newGuard(provider.Name()+"-embed", retry, cb),
		provider: provider,
	}
}

func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return call(ctx, r.guard, func() ([][]float32, error) { return r.provider.Embed(ctx, texts) })
}

func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, r.guard, func() ([]float32, error) { return r.provider.EmbedSingle(ctx, text) })
}

func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// ResilientChatProvider wraps a ChatProvider.
type ResilientChatProvider struct {
	guard
	provider llm.ChatProvider
}

var _ llm.ChatProvider = (*ResilientChatProvider)(nil)

// NewResilientChatProvider 创建带重试与熔断的 Chat 供应商。
func NewResilientChatProvider(provider llm.ChatProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *ResilientChatProvider {
	return &ResilientChatProvider{
		guard:    newGuard(provider.Name()+"-chat", retry, cb),
		provider: provider,
	}
}

func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, temperature float64) (*llm.GenerateResponse, error) {
	return call(ctx, r.guard, func() (*llm.GenerateResponse, error) {
		return r.provider.Generate(ctx, prompt, temperature)
	})
}

func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// BreakerOf returns the breaker of a resilient provider, looking through
// embedding wrappers such as the Redis cache, or nil.
func BreakerOf(provider any) *CircuitBreaker {
	for provider != nil {
		switch p := provider.(type) {
		case interface{ CircuitBreaker() *CircuitBreaker }:
			return p.CircuitBreaker()
		case interface{ Unwrap() llm.EmbeddingProvider }:
			provider = p.Unwrap()
		default:
			return nil
		}
	}
	return nil
}
