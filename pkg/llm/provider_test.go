package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (m *stubProvider) Name() string { return m.name }

func (m *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (m *stubProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *stubProvider) Generate(_ context.Context, prompt string, _ float64) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "echo: " + prompt}, nil
}

func newStub(s Settings) (*stubProvider, error) {
	if s.APIKey == "bad" {
		return nil, errors.New("rejected")
	}
	return &stubProvider{name: Or(s.Model, "stub")}, nil
}

func TestRegister_BothCapabilities(t *testing.T) {
	Register("stub-full", Registration{Embed: Embedder(newStub), Chat: Chatter(newStub)})

	chat, err := NewChatProvider("stub-full", Settings{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", chat.Name())

	resp, err := chat.Generate(context.Background(), "hi", DefaultTemperature)
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Content)

	emb, err := NewEmbeddingProvider("stub-full", Settings{})
	require.NoError(t, err)
	assert.Equal(t, "stub", emb.Name())
}

func TestRegister_EmbeddingOnly(t *testing.T) {
	Register("stub-embed", Registration{Embed: Embedder(newStub)})

	_, err := NewEmbeddingProvider("stub-embed", Settings{})
	require.NoError(t, err)

	_, err = NewChatProvider("stub-embed", Settings{})
	assert.ErrorContains(t, err, "does not offer chat")
}

func TestRegister_Panics(t *testing.T) {
	Register("stub-dup", Registration{Chat: Chatter(newStub)})

	assert.Panics(t, func() { Register("stub-dup", Registration{Chat: Chatter(newStub)}) })
	assert.Panics(t, func() { Register("stub-empty", Registration{}) })
	assert.Panics(t, func() { Register("", Registration{Chat: Chatter(newStub)}) })
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewChatProvider("no-such-provider", Settings{})
	assert.ErrorContains(t, err, "unknown llm provider")

	_, err = NewEmbeddingProvider("no-such-provider", Settings{})
	assert.Error(t, err)
}

func TestAdapters_FailureIsUntypedNil(t *testing.T) {
	Register("stub-failing", Registration{Embed: Embedder(newStub), Chat: Chatter(newStub)})

	chat, err := NewChatProvider("stub-failing", Settings{APIKey: "bad"})
	require.Error(t, err)
	assert.True(t, chat == nil)

	emb, err := NewEmbeddingProvider("stub-failing", Settings{APIKey: "bad"})
	require.Error(t, err)
	assert.True(t, emb == nil)
}

func TestProviders_Sorted(t *testing.T) {
	Register("zz-stub", Registration{Chat: Chatter(newStub)})
	Register("aa-stub", Registration{Embed: Embedder(newStub)})

	names := Providers()
	assert.Contains(t, names, "zz-stub")
	assert.Contains(t, names, "aa-stub")
	assert.IsNonDecreasing(t, names)
}

func TestPromptMessages(t *testing.T) {
	msgs := PromptMessages("question")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "question", msgs[1].Content)
}

func TestOr(t *testing.T) {
	assert.Equal(t, "v", Or("v", "d"))
	assert.Equal(t, "d", Or("", "d"))
	assert.Equal(t, 4, Or(4, 1))
	assert.Equal(t, 1, Or(0, 1))
}
