package provider

import (
	"context"
	"fmt"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = anthropic.ModelClaudeSonnet4_5_20250929
	anthropicMaxTokens    = 4096
	anthropicMaxRetries   = 2
)

// AnthropicProvider serves "claude-*" model ids through the Messages API.
// Sampling is deterministic, matching the other backends.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates the Claude backend. baseURL and modelName
// fall back to the public API and Claude Sonnet 4.5; apiKey is required.
func NewAnthropicProvider(baseURL, apiKey, modelName string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}

	m := defaultAnthropicModel
	if modelName != "" {
		m = anthropic.Model(modelName)
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(anthropicMaxRetries),
		),
		model:   m,
		baseURL: baseURL,
	}, nil
}

// Chat sends system turns as the system prompt and the rest as messages.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	turns, system := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       p.model,
		Messages:    turns,
		System:      system,
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(0),
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return model.Message{}, fmt.Errorf("Anthropic request failed: %w", err)
	}

	return model.AssistantMessage(anthropicText(msg.Content)), nil
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// Ping lists models, which checks the key without spending tokens.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
