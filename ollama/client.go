package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
	options map[string]any
}

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL: %q needs scheme and host", baseURL)
	}

	client := api.NewClient(parsedURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		baseURL: baseURL,
		options: map[string]any{"temperature": 0},
	}, nil
}

// Chat sends a non-streaming chat request and returns the assistant message.
func (c *Client) Chat(ctx context.Context, messages []api.Message) (api.Message, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  c.options,
	}

	// With streaming off the server answers once, but the client API is
	// callback based, so collect whatever arrives.
	var content strings.Builder
	role := "assistant"
	respFunc := func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Message.Role != "" {
			role = resp.Message.Role
		}
		return nil
	}

	if err := c.client.Chat(ctx, req, respFunc); err != nil {
		return api.Message{}, err
	}

	return api.Message{Role: role, Content: content.String()}, nil
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}
