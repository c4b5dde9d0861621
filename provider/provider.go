package provider

import (
	"context"
	"errors"
	"os"
	"time"

	openai_provider "github.com/mohammad-safakhou/deepresearch/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the generation backend the pipeline depends on. Generate is
// single-shot (safety check, query analysis); GenerateStream feeds the final
// answer; Embed backs the retrieval store.
type Provider interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
	GenerateStream(ctx context.Context, model string, prompt string, onChunk func(string) error) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, apiKey string, timeout time.Duration) (Provider, error) {
	switch client {
	case OpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		return openai_provider.NewClient(
			apiKey,
			"text-embedding-3-large",
			0.2,
			4096,
			timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
