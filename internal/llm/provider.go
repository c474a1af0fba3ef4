package llm

import (
	"context"
)

// Provider defines the interface for content generation models
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces an HTML document for the collected wizard answers
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for document generation
type GenerateRequest struct {
	// System sets the model's role and house rules
	System string

	// Prompt carries the collected answers and the approved reference list (see BuildPrompt)
	Prompt string

	// AllowedURLs is the STRICT allowlist of source URLs the model may link to.
	// Anything else in the output fails the request when StrictReferences is set.
	AllowedURLs []string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the model output
type GenerateResponse struct {
	// Content is the generated HTML with any Markdown code fences removed
	Content string

	// CitedURLs are the URLs found in the output (for verification)
	CitedURLs []string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama's OpenAI-compatible API)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// StrictReferences rejects output linking to URLs outside the allowlist
	StrictReferences bool

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:         "", // Disabled by default
		Model:            "",
		Timeout:          60,
		MaxTokens:        2500,
		Temperature:      0.4,
		StrictReferences: true,
	}
}
