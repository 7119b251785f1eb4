package gateway

import "github.com/stewardhq/steward/internal/gateway/contract"

// GenerationRequest is a single prompt-in, text-out call to a language model.
// Responses are free text; callers must tolerate prose around any JSON.
type GenerationRequest = contract.GenerationRequest

// Gateway is the language model boundary.
type Gateway = contract.Gateway

// Embedder produces vector embeddings for knowledge retrieval.
type Embedder = contract.Embedder

// Provider is one concrete model backend.
type Provider = contract.Provider
