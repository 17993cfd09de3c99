package llm

import (
	"os"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/logging"
)

const (
	// EnvGogoMode is the environment variable name for mode selection.
	EnvGogoMode = "GOGO_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// NewLLMClient creates an LLM client for provider.
// GOGO_MODE=MOCK forces the mock client regardless of provider.
func NewLLMClient(provider, baseURL, apiKey string, timeout time.Duration) LLMClient {
	if os.Getenv(EnvGogoMode) == ModeMock || provider == ProviderMock {
		logging.Info().Msg("mock mode detected, using mock LLM client")
		return NewMockClient()
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, anthropicBaseURL(baseURL))
	case ProviderOpenAI, "":
		return NewClient(baseURL, apiKey, timeout)
	default:
		logging.Warn().Str("provider", provider).Msg("unknown LLM provider, falling back to OpenAI-compatible client")
		return NewClient(baseURL, apiKey, timeout)
	}
}

// anthropicBaseURL drops the OpenAI-compatible local default so the SDK uses
// its public endpoint.
func anthropicBaseURL(baseURL string) string {
	if baseURL == "http://localhost:4000" {
		return ""
	}
	return baseURL
}
