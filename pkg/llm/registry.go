package llm

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registration 描述一个供应商能提供的能力。Embed 与 Chat 至少一个非空。
type Registration struct {
	Embed func(Settings) (EmbeddingProvider, error)
	Chat  func(Settings) (ChatProvider, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// Register makes a provider available by name. It panics when the name is
// taken or the registration offers nothing, so conflicting imports fail at
// start-up.
func Register(name string, r Registration) {
	if name == "" || (r.Embed == nil && r.Chat == nil) {
		panic(fmt.Sprintf("llm: invalid registration %q", name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("llm: provider %q registered twice", name))
	}
	registry[name] = r
}

func lookup(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r, ok
}

// NewEmbeddingProvider 按名称创建 Embedding 供应商。
func NewEmbeddingProvider(name string, s Settings) (EmbeddingProvider, error) {
	r, ok := lookup(name)
	switch {
	case !ok:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	case r.Embed == nil:
		return nil, fmt.Errorf("llm provider %q does not offer embeddings", name)
	}
	return r.Embed(s)
}

// NewChatProvider 按名称创建 Chat 供应商。
func NewChatProvider(name string, s Settings) (ChatProvider, error) {
	r, ok := lookup(name)
	switch {
	case !ok:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	case r.Chat == nil:
		return nil, fmt.Errorf("llm provider %q does not offer chat", name)
	}
	return r.Chat(s)
}

// Providers lists registered names in order.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// Embedder adapts a concrete constructor to Registration.Embed. A failed
// constructor yields a nil interface rather than a typed nil.
func Embedder[P EmbeddingProvider](newFn func(Settings) (P, error)) func(Settings) (EmbeddingProvider, error) {
	return func(s Settings) (EmbeddingProvider, error) {
		p, err := newFn(s)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Chatter adapts a concrete constructor to Registration.Chat.
func Chatter[P ChatProvider](newFn func(Settings) (P, error)) func(Settings) (ChatProvider, error) {
	return func(s Settings) (ChatProvider, error) {
		p, err := newFn(s)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
