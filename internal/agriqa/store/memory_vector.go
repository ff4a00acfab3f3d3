package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine VectorStore held in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	dim   int
	docs  []Document
	index map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Ensure implements VectorStore.
func (s *MemoryStore) Ensure(_ context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim != 0 && s.dim != dim && len(s.docs) > 0 {
		return fmt.Errorf("vector dimension mismatch: store has %d, got %d", s.dim, dim)
	}
	s.dim = dim
	return nil
}

// Add implements VectorStore.
func (s *MemoryStore) Add(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if s.dim != 0 && len(d.Embedding) != s.dim {
			return fmt.Errorf("document %s has dimension %d, want %d", d.ID, len(d.Embedding), s.dim)
		}
		if i, ok := s.index[d.ID]; ok {
			s.docs[i] = d
			continue
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
	}
	return nil
}

// Query implements VectorStore. Distance is 1 - cosine similarity.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, k int, datasetKey string) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]SearchHit, 0, len(s.docs))
	for _, d := range s.docs {
		if datasetKey != "" && d.DatasetKey() != datasetKey {
			continue
		}
		hits = append(hits, SearchHit{Document: d, Distance: 1 - cosine(embedding, d.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count implements VectorStore.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

// Reset implements VectorStore.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.index = make(map[string]int)
	return nil
}

// Close implements VectorStore.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ VectorStore = (*MemoryStore)(nil)
