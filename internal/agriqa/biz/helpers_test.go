package biz

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/pkg/llm"
)

// fakeChat answers by the first prompt marker it finds.
type fakeChat struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	prompts []string
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Generate(_ context.Context, prompt string, _ float64) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return &llm.GenerateResponse{Content: reply, TokenUsage: &llm.TokenUsage{TotalTokens: 10}}, nil
		}
	}
	return &llm.GenerateResponse{Content: "no idea"}, nil
}

func (f *fakeChat) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeChat) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

const (
	markerDecompose  = "Analyze this question"
	markerSynthesize = "User Question:"
	markerEntities   = "Extract all mentions"
)

// keywordEmbedder counts topic keywords, so texts about the same topic
// point the same way.
type keywordEmbedder struct {
	err error
}

var embedKeywords = []string{"rain", "crop", "price", "temperature", "area"}

func (e *keywordEmbedder) Name() string { return "keyword" }

func (e *keywordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(embedKeywords)+1)
		for j, kw := range embedKeywords {
			v[j] = float32(strings.Count(lower, kw))
		}
		v[len(embedKeywords)] = 0.01
		out[i] = v
	}
	return out, nil
}

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct {
	vec []float32
}

func (e *fixedEmbedder) Name() string { return "fixed" }

func (e *fixedEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return e.vec, nil
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func newSyntheticStore() *store.DatasetStore {
	return store.NewDatasetStore(nil, nil)
}

var errBoom = errors.New("boom")
