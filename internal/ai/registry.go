package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context) (Provider, error)

type EmbedderFactory func(ctx context.Context) (Embedder, error)

// Registry maps provider names to constructors for chat and embedding
// backends. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
	embedders map[string]EmbedderFactory
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderFactory),
		embedders: make(map[string]EmbedderFactory),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalize(name)] = f
}

func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[normalize(name)] = f
}

func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.providers[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx)
}

func (r *Registry) Embedder(ctx context.Context, name string) (Embedder, error) {
	r.mu.RLock()
	f, ok := r.embedders[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return f(ctx)
}
