package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	v := NewULID()
	assert.Len(t, v, 26)
	assert.True(t, IsULID(v))
	assert.False(t, IsULID("not-a-ulid"))
}

func TestULIDGenerator_MonotonicAndUnique(t *testing.T) {
	g := NewULIDGenerator()

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = g.Generate()
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, len(ids))
}

func TestULIDGenerator_Concurrent(t *testing.T) {
	g := NewULIDGenerator()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := g.Generate()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestTime(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	v := NewULID()

	ts, err := Time(v)
	require.NoError(t, err)
	assert.False(t, ts.Before(before))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func() string { return "fixed" })
	assert.Equal(t, "fixed", g.Generate())
}
