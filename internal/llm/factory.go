package llm

import (
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/config"
)

const (
	// ProviderOpenAI talks to the OpenAI API or a compatible gateway.
	ProviderOpenAI = "openai"
	// ProviderMock uses MockClient.
	ProviderMock = "mock"
)

// NewClient creates the Client selected by cfg. The mock is used when the
// provider is "mock" or no API key is configured; real providers are wrapped in
// a circuit breaker.
func NewClient(cfg *config.LLMConfig, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == ProviderMock {
		logger.Info("using mock LLM client")
		return NewMockClient()
	}
	if cfg.APIKey == "" {
		logger.Warn("no LLM API key configured, using mock LLM client")
		return NewMockClient()
	}

	openaiClient := NewOpenAIClient(OpenAIOptions{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	return NewBreakerClient(openaiClient, BreakerSettings{
		Name:             "llm-" + cfg.Provider,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger)
}
