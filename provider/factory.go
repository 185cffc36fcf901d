package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
)

// ErrUnsupportedModel is returned when no backend serves the configured
// model identifier.
var ErrUnsupportedModel = errors.New("unsupported model")

// ErrEmptyResponse is returned when a backend answers without any content
// choices.
var ErrEmptyResponse = errors.New("empty response from model")

var gigaChatModels = map[string]bool{
	"GigaChat-2":     true,
	"GigaChat-2-Pro": true,
	"GigaChat-2-Max": true,
}

var codestralModels = map[string]bool{
	"codestral-latest": true,
}

const (
	anthropicModelPrefix = "claude-"
	ollamaModelPrefix    = "ollama/"
)

// ResolveModel maps a configured model identifier to the backend serving it
// and the model name that backend expects.
//
// Mappings:
//   - GigaChat family → ProviderTypeGigaChat
//   - "codestral-latest" → ProviderTypeCodestral
//   - "claude-..." → ProviderTypeAnthropic
//   - "ollama/llama3.1" → ProviderTypeOllama, model "llama3.1"
func ResolveModel(id string) (ProviderType, string, error) {
	switch {
	case gigaChatModels[id]:
		return ProviderTypeGigaChat, id, nil
	case codestralModels[id]:
		return ProviderTypeCodestral, id, nil
	case strings.HasPrefix(id, anthropicModelPrefix):
		return ProviderTypeAnthropic, id, nil
	case strings.HasPrefix(id, ollamaModelPrefix) && len(id) > len(ollamaModelPrefix):
		return ProviderTypeOllama, strings.TrimPrefix(id, ollamaModelPrefix), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedModel, id)
	}
}

// NewProvider creates a provider based on configuration.
//
// This is the centralized factory function for creating any provider type.
// It dispatches to the provider constructor matching Config.Type.
//
// Returns an error if:
//   - The provider type is unknown
//   - The provider-specific constructor fails (e.g., missing API key)
//
// Example (Codestral):
//
//	cfg := provider.Config{
//	    Type:    provider.ProviderTypeCodestral,
//	    BaseURL: "https://codestral.mistral.ai/v1",
//	    Model:   "codestral-latest",
//	    APIKey:  "...",
//	}
//	p, err := provider.NewProvider(cfg)
func NewProvider(cfg Config) (model.Provider, error) {
	var (
		p   model.Provider
		err error
	)

	// p stays nil unless the constructor succeeded.
	switch cfg.Type {
	case ProviderTypeGigaChat:
		var giga *GigaChatProvider
		if giga, err = NewGigaChatProvider(GigaChatOptions{
			Credentials: cfg.APIKey,
			Scope:       cfg.Scope,
			Model:       cfg.Model,
		}); err == nil {
			p = giga
		}
	case ProviderTypeCodestral:
		var codestral *CodestralProvider
		if codestral, err = NewCodestralProvider(cfg.BaseURL, cfg.APIKey, cfg.Model); err == nil {
			p = codestral
		}
	case ProviderTypeAnthropic:
		var claude *AnthropicProvider
		if claude, err = NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model); err == nil {
			p = claude
		}
	case ProviderTypeOllama:
		var local *OllamaProvider
		if local, err = NewOllamaProvider(cfg.BaseURL, cfg.Model); err == nil {
			p = local
		}
	default:
		err = fmt.Errorf("unknown provider type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return p, nil
}
