// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings"
)

// Provider is a configurable mock implementation of embeddings.Provider.
// The zero value returns a fixed small vector for every input.
type Provider struct {
	mu    sync.Mutex
	calls []string

	// EmbedResult is returned by Embed when Err is nil.
	// When nil, a fixed 4-dimensional vector is returned.
	EmbedResult []float32

	// Err is returned by Embed when non-nil.
	Err error

	// DimensionsResult is returned by Dimensions. Defaults to 4.
	DimensionsResult int
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider. It records the input text.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.EmbedResult != nil {
		out := make([]float32, len(p.EmbedResult))
		copy(out, p.EmbedResult)
		return out, nil
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.DimensionsResult == 0 {
		return 4
	}
	return p.DimensionsResult
}

// Calls returns a copy of every text passed to Embed so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
