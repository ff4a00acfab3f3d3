package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/llm"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	return NewWithConfig(cfg)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		settings  llm.Settings
		wantChat  string
		wantEmbed string
		wantError bool
	}{
		{
			name:      "defaults",
			settings:  llm.Settings{APIKey: testAPIKey},
			wantChat:  "gpt-4-turbo-preview",
			wantEmbed: "text-embedding-3-small",
		},
		{
			name:      "model overrides both",
			settings:  llm.Settings{APIKey: testAPIKey, Model: "gpt-4o", Organization: "org-123"},
			wantChat:  "gpt-4o",
			wantEmbed: "gpt-4o",
		},
		{name: "missing api key", settings: llm.Settings{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := New(tt.settings)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, provider.Name())
			assert.Equal(t, tt.wantChat, provider.config.ChatModel)
			assert.Equal(t, tt.wantEmbed, provider.config.EmbedModel)
			assert.Equal(t, tt.settings.Organization, provider.config.Organization)
		})
	}
}

func TestProviderEmbed_ReordersByIndex(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0.4,0.5,0.6],"index":1},
			{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	})

	embeddings, err := provider.Embed(context.Background(), []string{"text1", "text2"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, embeddings[1])
}

func TestProviderEmbed_MissingVector(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1],"index":0}]}`))
	})

	_, err := provider.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestProviderEmbedEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	embeddings, err := NewWithConfig(cfg).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestProviderGenerate_SendsSystemPromptAndTemperature(t *testing.T) {
	var received chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"rice"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	})

	resp, err := provider.Generate(context.Background(), "what crop?", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "rice", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 12, resp.TokenUsage.TotalTokens)

	require.Len(t, received.Messages, 2)
	assert.Equal(t, llm.RoleSystem, received.Messages[0].Role)
	assert.Equal(t, llm.DefaultSystemPrompt, received.Messages[0].Content)
	assert.Equal(t, "what crop?", received.Messages[1].Content)
	assert.InDelta(t, 0.3, received.Temperature, 1e-9)
	assert.Equal(t, "gpt-4-turbo-preview", received.Model)
}

func TestProviderGenerate_NoChoices(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := provider.Generate(context.Background(), "q", 0.3)
	assert.Error(t, err)
}

func TestProviderGenerate_StatusError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := provider.Generate(context.Background(), "q", 0.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOrganizationHeader(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})
	provider.config.Organization = "org-1"

	_, err := provider.Generate(context.Background(), "q", 0.3)
	require.NoError(t, err)
}
