package testutil

import (
	"context"
	"strings"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
)

// TestMessages returns a sample generation exchange for testing
func TestMessages() []model.Message {
	return []model.Message{
		model.SystemMessage("You write programs in the block language."),
		model.UserMessage("Build a counter that increments on click."),
		model.AssistantMessage("counter = 0\non click: counter = counter + 1"),
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.UserMessage(content)}
}

// ChatBySystemPrefix answers each call with the reply registered for the
// prefix of its first (system) turn. Calls matching no prefix get fallback.
// It lets conversation tests script a reply per stage without relying on
// call order.
func ChatBySystemPrefix(replies map[string]string, fallback string) func(ctx context.Context, messages []model.Message) (model.Message, error) {
	return func(ctx context.Context, messages []model.Message) (model.Message, error) {
		if len(messages) > 0 {
			for prefix, reply := range replies {
				if strings.HasPrefix(messages[0].Content, prefix) {
					return model.AssistantMessage(reply), nil
				}
			}
		}
		return model.AssistantMessage(fallback), nil
	}
}
