package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/llm"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestRegistered(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, llm.Settings{Dimension: 64})
	require.NoError(t, err)

	v, err := p.EmbedSingle(context.Background(), "rice production")
	require.NoError(t, err)
	assert.Len(t, v, 64)
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestDeterministicAndNormalized(t *testing.T) {
	p, err := New(128)
	require.NoError(t, err)

	a, err := p.EmbedSingle(context.Background(), "Rainfall in Kerala")
	require.NoError(t, err)
	b, err := p.EmbedSingle(context.Background(), "rainfall, in KERALA!")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-6)
}

func TestSimilarTextsScoreHigher(t *testing.T) {
	p, err := New(DefaultDimension)
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{
		"annual rainfall by state",
		"rainfall by state and year",
		"crop production of wheat",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
}

func TestEmptyTextIsZeroVector(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)

	v, err := p.EmbedSingle(context.Background(), "  ,, ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"crop", "2019", "tamil", "nadu"}, Tokenize("Crop-2019: Tamil_Nadu"))
}

func TestEmbed_CancelledContext(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
