// Package llm provides clients for phrasing answers with a language model.
// Retrieval never depends on a model; these clients only rewrite already
// retrieved facts into prose.
package llm

import "context"

// LLMClient defines the interface for LLM operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}
