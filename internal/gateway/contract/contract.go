package contract

import "context"

// GenerationRequest is a single prompt-in, text-out call to a language model.
// Responses are free text; callers must tolerate prose around any JSON.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	Stop        []string
}

// Gateway is the language model boundary.
type Gateway interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Embedder produces vector embeddings for knowledge retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is one concrete model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}
