package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Provider is the external text-generation capability: given a prompt and a
// model identifier it returns generated text or an error.
type Provider interface {
	// Call makes a single, non-retried generation request
	Call(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// Request contains the request parameters for a generation call
type Request struct {
	Model        string
	Prompt       string
	MaxTokens    int
	SystemPrompt string
	Temperature  float64
}

// Response contains the generated text
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Supported provider names
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewProvider creates a provider by name
func NewProvider(name, apiKey string) (Provider, error) {
	switch name {
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// CredentialEnv returns the environment variable holding the credential for
// the named provider.
func CredentialEnv(name string) string {
	switch name {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}
