package llm

import (
	"context"

	"github.com/ppiankov/aclarai/internal/model"
)

// Provider is a text completion backend. Implementations must be safe for
// concurrent use; the pipeline calls Complete from several workers.
type Provider interface {
	// Name returns the provider name, also used as the rate limiter key
	Name() string

	// Complete sends one system+user prompt and returns the model's text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one prompt for a Provider
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // Empty uses the provider default
	MaxTokens   int
	Temperature float64
	JSONMode    bool // Ask the backend to constrain output to a JSON object
}

// CompletionResponse carries the model output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Embedder turns texts into vectors, one per input in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     30,
		MaxTokens:   1000,
		Temperature: 0.1,
	}
}

// ConfigFromModel converts the completion section of model.Config
func ConfigFromModel(cfg model.LLMConfig, timeoutSeconds int) Config {
	return Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     timeoutSeconds,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		HTTPProxy:   cfg.HTTPProxy,
		HTTPSProxy:  cfg.HTTPSProxy,
	}
}

// EmbeddingConfigFromModel converts the embedding section of model.Config.
// The API key and proxies are shared with the completion provider.
func EmbeddingConfigFromModel(emb model.EmbeddingConfig, llmCfg model.LLMConfig) Config {
	return Config{
		Provider:   emb.Provider,
		Model:      emb.Model,
		APIKey:     llmCfg.APIKey,
		BaseURL:    emb.BaseURL,
		Timeout:    60,
		HTTPProxy:  llmCfg.HTTPProxy,
		HTTPSProxy: llmCfg.HTTPSProxy,
	}
}

func pick[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
