package provider

import (
	"context"
	"fmt"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/ollama"
)

// OllamaProvider serves "ollama/<name>" model ids from a local Ollama
// server. The endpoint from the credential file is the server URL; the
// API key is ignored.
type OllamaProvider struct {
	client *ollama.Client
}

func NewOllamaProvider(baseURL, modelName string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	reply, err := p.client.Chat(ctx, ConvertToOllamaMessages(messages))
	if err != nil {
		return model.Message{}, fmt.Errorf("Ollama request failed: %w", err)
	}
	return model.AssistantMessage(reply.Content), nil
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// Ping lists the installed models.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}
