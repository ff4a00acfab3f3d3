package deepseek

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/llm"
)

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := New(llm.Settings{})
	assert.Error(t, err)
}

func TestRegisteredAsChatOnly(t *testing.T) {
	_, err := llm.NewChatProvider(ProviderName, llm.Settings{APIKey: "k"})
	require.NoError(t, err)

	_, err = llm.NewEmbeddingProvider(ProviderName, llm.Settings{APIKey: "k"})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"wheat"}}]}`))
	}))
	defer server.Close()

	p, err := New(llm.Settings{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), "q", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "wheat", resp.Content)
}
