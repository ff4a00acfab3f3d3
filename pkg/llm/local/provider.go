// Package local 提供离线的哈希词袋 Embedding 供应商。
//
// 文本按小写字母数字切分为词，每个词经 FNV-1a 哈希映射到固定维度的桶，
// 哈希最高位决定符号，最后做 L2 归一化。相同文本总得到相同向量，
// 无需网络，适用于离线运行与测试。
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kart-io/agriqa/pkg/llm"
)

// ProviderName 是本地供应商的名称标识符。
const ProviderName = "local"

// DefaultDimension 默认向量维度。
const DefaultDimension = 384

func init() {
	llm.Register(ProviderName, llm.Registration{
		Embed: llm.Embedder(func(s llm.Settings) (*Provider, error) {
			return New(llm.Or(s.Dimension, DefaultDimension))
		}),
	})
}

// Provider 哈希词袋 Embedding 供应商。
type Provider struct {
	dim int
}

// New 创建指定维度的本地供应商。
func New(dim int) (*Provider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("local: dimension must be positive, got %d", dim)
	}
	return &Provider{dim: dim}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Dimension 返回向量维度。
func (p *Provider) Dimension() int {
	return p.dim
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *Provider) vector(text string) []float32 {
	vec := make([]float64, p.dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := 1.0
		if sum&0x80000000 != 0 {
			sign = -1.0
		}
		vec[int(sum%uint32(p.dim))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, p.dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// Tokenize 将文本切分为小写的字母数字词。
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
