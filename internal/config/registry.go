package config

import (
	"errors"
	"fmt"

	"github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is not safe for concurrent mutation; register all
// factories during startup before creating providers.
type Registry struct {
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// RegisterLLM registers a factory for the named LLM provider, replacing any
// previous registration under that name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.llm[name] = factory
}

// RegisterEmbeddings registers a factory for the named embeddings provider,
// replacing any previous registration under that name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.embeddings[name] = factory
}

// CreateLLM constructs the LLM provider selected by entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	factory, ok := r.llm[entry.Name]
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings constructs the embeddings provider selected by
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	factory, ok := r.embeddings[entry.Name]
	if !ok {
		return nil, fmt.Errorf("%w: embeddings %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
