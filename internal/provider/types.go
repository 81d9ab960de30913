package provider

import "time"

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	// Prompt is the main input text for the model
	Prompt string `json:"prompt"`

	// SystemPrompt sets the system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the maximum response length
	// Set to 0 to use provider default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64 `json:"temperature,omitempty"`

	// ResponseMIMEType asks the model for a specific output encoding,
	// typically "application/json" for structured oracles
	ResponseMIMEType string `json:"response_mime_type,omitempty"`

	// ResponseSchema constrains structured output. Only honoured together
	// with a JSON ResponseMIMEType.
	ResponseSchema map[string]any `json:"response_schema,omitempty"`

	// Model overrides the provider default for this request
	Model string `json:"model,omitempty"`

	// Metadata for tracking and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// TokensUsed is the total tokens consumed (input + output)
	TokensUsed int `json:"tokens_used"`

	// InputTokens is tokens in the prompt
	InputTokens int `json:"input_tokens,omitempty"`

	// OutputTokens is tokens in the response
	OutputTokens int `json:"output_tokens,omitempty"`

	// Model is the actual model that generated the response
	Model string `json:"model"`

	// Latency is how long the generation took
	Latency time.Duration `json:"latency"`

	// FinishReason explains why generation stopped
	FinishReason string `json:"finish_reason"`

	// Provider is the name of the provider that handled this request
	Provider string `json:"provider"`
}

// Config configures an API provider.
type Config struct {
	// Name is the provider identifier used in logs, metrics and spans
	Name string `mapstructure:"name" yaml:"name"`

	// APIKey authenticates requests
	APIKey string `mapstructure:"api_key" yaml:"-"`

	// BaseURL overrides the public endpoint, mainly for tests
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Model is the default model
	Model string `mapstructure:"model" yaml:"model"`

	// MaxTokens caps the response length when a request does not
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single HTTP exchange
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RequestsPerSecond throttles outgoing calls; 0 disables throttling
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the number of calls allowed above the steady rate
	Burst int `mapstructure:"burst" yaml:"burst"`
}
