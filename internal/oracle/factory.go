package oracle

import (
	"context"
	"fmt"
	"log/slog"
)

// BackendConfig selects and configures a model backend.
type BackendConfig struct {
	Backend     string // rules, openai, gemini
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Build constructs the configured backend wrapped in Resilient.
func Build(ctx context.Context, backend BackendConfig, res ResilienceConfig, logger *slog.Logger) (*Resilient, error) {
	var inner Oracle
	switch backend.Backend {
	case RulesBackendName, "":
		inner = NewRules()
	case ChatBackendName:
		completer := NewChatCompleter(backend.Model,
			WithChatAPIKey(backend.APIKey),
			WithChatBaseURL(backend.BaseURL),
		)
		inner = NewLLMOracle(completer, WithTemperature(backend.Temperature), WithMaxTokens(backend.MaxTokens))
	case GeminiBackendName:
		completer, err := NewGeminiCompleter(ctx, backend.APIKey, backend.Model)
		if err != nil {
			return nil, err
		}
		inner = NewLLMOracle(completer, WithTemperature(backend.Temperature), WithMaxTokens(backend.MaxTokens))
	default:
		return nil, fmt.Errorf("oracle: unsupported backend %q", backend.Backend)
	}
	return NewResilient(inner, res, logger), nil
}
