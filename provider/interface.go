// Package provider builds the model backends the relay talks to.
//
// The relay supports several LLM backends (GigaChat, Mistral Codestral,
// Anthropic Claude, Ollama) through the common model.Provider interface.
// The conversation and server packages stay backend-agnostic; adding a new
// backend means implementing the interface and teaching the factory which
// model identifiers select it.
//
// # Backend selection
//
// The credential file's model identifier is the discriminator:
//   - "GigaChat-2", "GigaChat-2-Pro", "GigaChat-2-Max" → GigaChatProvider
//   - "codestral-latest" → CodestralProvider
//   - "claude-*" → AnthropicProvider
//   - "ollama/<name>" → OllamaProvider for model <name>
//
// Anything else is rejected with ErrUnsupportedModel.
//
// # Type Conversions
//
// The provider layer handles all conversions between model.Message and the
// SDK-specific message types. See conversions.go:
//   - ConvertToOpenAIMessages (GigaChat, Codestral)
//   - convertToAnthropicMessages
//   - ConvertToOllamaMessages
//
// # Usage
//
//	creds, err := config.LoadCredentials(path)
//	if err != nil {
//	    // handle error
//	}
//	p, err := provider.Build(creds, logger)
//	if err != nil {
//	    // handle error
//	}
//	reply, err := p.Chat(ctx, messages)
package provider

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeGigaChat  ProviderType = "gigachat"
	ProviderTypeCodestral ProviderType = "codestral"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOllama    ProviderType = "ollama"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // GigaChat: base64 authorization key exchanged for tokens
	Scope   string // GigaChat only
}
