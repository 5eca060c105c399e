package interfaces

import "context"

// EmbeddingClient converts text to a fixed-length vector. Implementations
// wrap an LLM provider or generate deterministic fallback vectors.
type EmbeddingClient interface {
	// Embed converts a single text to an embedding vector of exactly
	// Dimensions() length
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size
	Dimensions() int
}
