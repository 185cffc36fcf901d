package provider

import (
	"context"
	"fmt"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultCodestralURL = "https://codestral.mistral.ai/v1"

	// codestralMaxRetries bounds SDK retries on transient failures
	// (connection errors, 408/409/429, 5xx).
	codestralMaxRetries = 2
)

// CodestralProvider implements the Provider interface for Mistral's
// Codestral models. Mistral's chat API is OpenAI-compatible, so it uses the
// official OpenAI Go SDK with a custom base URL.
type CodestralProvider struct {
	client      openai.Client
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
}

// NewCodestralProvider creates a new Codestral provider instance.
//
// Parameters:
//   - baseURL: Mistral API base URL (default: "https://codestral.mistral.ai/v1")
//   - apiKey: Mistral API key (required)
//   - model: Model identifier (default: "codestral-latest")
//
// Sampling is deterministic (temperature 0).
func NewCodestralProvider(baseURL, apiKey, model string) (*CodestralProvider, error) {
	if baseURL == "" {
		baseURL = defaultCodestralURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Codestral API key is required")
	}
	if model == "" {
		model = "codestral-latest"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(codestralMaxRetries),
	)

	return &CodestralProvider{
		client:      client,
		model:       model,
		baseURL:     baseURL,
		temperature: 0,
		maxRetries:  codestralMaxRetries,
	}, nil
}

// Chat implements Provider.Chat.
func (p *CodestralProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	reply, err := chatCompletion(ctx, &p.client, p.model, &p.temperature, messages)
	if err != nil {
		return model.Message{}, fmt.Errorf("Codestral request failed: %w", err)
	}
	return reply, nil
}

// GetModel implements Provider.GetModel.
func (p *CodestralProvider) GetModel() string {
	return p.model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *CodestralProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("Codestral ping failed: %w", err)
	}
	return nil
}
