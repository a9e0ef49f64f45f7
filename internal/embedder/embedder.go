// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
// Implementations must be deterministic for a given text and model version.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	// Search only embeds queries; batches serve the ingestion side that
	// writes chunk embeddings into the store.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// KnownDimensions maps embedding model names to their output dimensionality.
var KnownDimensions = map[string]int{
	"gemini-embedding-001":   3072,
	"text-embedding-004":     768,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// DimensionFor returns the dimension of a known model, or fallback when unknown.
func DimensionFor(modelName string, fallback int) int {
	if dim, ok := KnownDimensions[modelName]; ok {
		return dim
	}
	return fallback
}
