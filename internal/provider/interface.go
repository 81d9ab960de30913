package provider

import (
	"context"
)

// ProviderClient is the interface every text-generation backend implements.
// Oracles build prompts; providers only move them over the wire.
type ProviderClient interface {
	// Generate sends a prompt and returns the complete response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GetInfo returns metadata about the provider.
	GetInfo() *ProviderInfo

	// IsAvailable reports whether the provider is configured to handle requests.
	IsAvailable() bool

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	// Name is the provider identifier (e.g., "gemini")
	Name string

	// Model is the default model requests are sent to
	Model string

	// Description is a human-readable description of the provider
	Description string
}
