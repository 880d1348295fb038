// Package llm provides the text-completion and embedding clients used by
// the conversation engine and the document indexer. Clients speak the
// provider HTTP APIs directly and wrap every call in a circuit breaker so
// a stalled provider cannot cascade into the request path.
package llm

import "context"

// TextGenerator is the interface for LLM text completion. The engine
// assembles the full prompt (system + context + question) as one string.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
