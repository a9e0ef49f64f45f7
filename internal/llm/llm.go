// Package llm provides a minimal Large Language Model client used to judge
// passage relevance when no dedicated cross-encoder service is deployed.
package llm

import (
	"context"
)

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model overrides the client's default model.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation. Relevance judging uses 0.
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// JSON asks the model to emit a single JSON document.
	JSON bool
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
