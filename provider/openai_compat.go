package provider

import (
	"context"
	"fmt"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/openai/openai-go/v3"
)

// chatCompletion sends one non-streaming chat-completions request and
// returns the first choice. A nil temperature leaves the backend default.
func chatCompletion(ctx context.Context, client *openai.Client, modelName string, temperature *float64, messages []model.Message) (model.Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(modelName),
	}
	if temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Message{}, err
	}

	if len(resp.Choices) == 0 {
		return model.Message{}, fmt.Errorf("%w: model %s", ErrEmptyResponse, modelName)
	}

	return model.AssistantMessage(resp.Choices[0].Message.Content), nil
}
