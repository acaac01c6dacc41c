// Package provider selects and constructs the AI client used for
// recommendation generation. Callers depend on the AIClient interface and
// never on a concrete provider.
package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/anthropic"
	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
)

// Provider represents an LLM provider type
type Provider string

const (
	// ProviderAnthropic uses the direct Anthropic API
	ProviderAnthropic Provider = "anthropic"
	// ProviderOpenRouter uses the OpenRouter.ai API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAuto automatically selects based on configuration
	ProviderAuto Provider = "auto"
)

// AIClient interface for all LLM providers
// Ensures compatibility between different providers
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// NewAIClient creates an AI client based on configuration.
// The provider comes from cfg.AI.Provider; unset or "auto" selects by
// available API keys (Anthropic first, then OpenRouter).
func NewAIClient(cfg *config.Config, logger *zap.SugaredLogger) (AIClient, error) {
	provider, err := ParseProvider(cfg.AI.Provider)
	if err != nil {
		return nil, err
	}
	return NewAIClientWithProvider(cfg, provider, logger), nil
}

// NewAIClientWithProvider creates an AI client for a specific provider.
// Use ProviderAuto to let the factory decide based on configuration.
func NewAIClientWithProvider(cfg *config.Config, provider Provider, logger *zap.SugaredLogger) AIClient {
	switch provider {
	case ProviderAnthropic:
		return anthropic.FromConfig(cfg.Anthropic, logger)
	case ProviderOpenRouter:
		return openrouter.FromConfig(cfg.OpenRouter, logger)
	default:
		return autoSelectClient(cfg, logger)
	}
}

// autoSelectClient picks the best available provider.
// Priority: Anthropic (if API key set) → OpenRouter.
func autoSelectClient(cfg *config.Config, logger *zap.SugaredLogger) AIClient {
	if cfg.Anthropic.APIKey != "" {
		return anthropic.FromConfig(cfg.Anthropic, logger)
	}
	return openrouter.FromConfig(cfg.OpenRouter, logger)
}

// ActiveProvider reports which provider NewAIClient would construct for cfg.
func ActiveProvider(cfg *config.Config) Provider {
	provider, err := ParseProvider(cfg.AI.Provider)
	if err != nil || provider == ProviderAuto {
		if cfg.Anthropic.APIKey != "" {
			return ProviderAnthropic
		}
		return ProviderOpenRouter
	}
	return provider
}

// AvailableProviders returns the providers with an API key configured.
func AvailableProviders(cfg *config.Config) []Provider {
	var providers []Provider
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, ProviderAnthropic)
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: anthropic, openrouter, auto)", s)
	}
}

// Verify interfaces are implemented
var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*anthropic.Client)(nil)
