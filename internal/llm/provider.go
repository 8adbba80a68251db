// Package llm provides text generation providers for AIER agents.
package llm

import "context"

// Name identifies a generation provider.
type Name string

const (
	NameGemini Name = "gemini"
	NameClaude Name = "claude"
	NameAzure  Name = "azure"
	NameOllama Name = "ollama"
)

// Request is a single generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int

	// JSON asks the provider for a JSON object response when it supports one.
	JSON bool
}

// Provider performs one remote generation round trip. Implementations do not
// retry. Failures are either a *RateLimitError or a *TransportError.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() Name
}
