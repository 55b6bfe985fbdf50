// Package embeddings defines the Provider interface for text embedding
// backends used to index conversation records for semantic recall.
//
// Embedding is optional: when no provider is configured the memory store
// falls back to purely chronological retrieval.
package embeddings

import "context"

// Provider converts text into a dense vector representation.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the vector representation of text. The dimension is
	// fixed per provider/model combination and must match the store's
	// configured embedding dimension.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the output dimension of the embedding model.
	Dimensions() int
}
