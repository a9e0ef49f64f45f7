package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the model the stored chunk vectors were produced with.
	DefaultGeminiModel = "gemini-embedding-001"

	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// GeminiConfig holds configuration for the Gemini embedder.
type GeminiConfig struct {
	APIKey    string
	Model     string
	Dimension int
}

// GeminiEmbedder implements the Embedder interface using the Gemini API.
// Embed uses the query task type; EmbedBatch uses the document task type.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiEmbedder creates a new Gemini embedder.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DimensionFor(model, 3072)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

// Embed generates a query embedding.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates document embeddings in one request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embed(ctx, texts, taskRetrievalDocument)
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.Text(t)[0]
	}

	dim := int32(e.dimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned from Gemini at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*GeminiEmbedder)(nil)
