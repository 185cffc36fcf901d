package provider

import (
	"testing"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Message
		expected []api.Message
	}{
		{
			name:     "empty slice",
			input:    []model.Message{},
			expected: []api.Message{},
		},
		{
			name: "single message",
			input: []model.Message{
				{Role: model.RoleUser, Content: "Hello"},
			},
			expected: []api.Message{
				{Role: "user", Content: "Hello"},
			},
		},
		{
			name: "full exchange",
			input: []model.Message{
				{Role: model.RoleSystem, Content: "You write programs", Timestamp: time.Now()},
				{Role: model.RoleUser, Content: "Build a counter", Timestamp: time.Now()},
				{Role: model.RoleAssistant, Content: "counter = 0", Timestamp: time.Now()},
			},
			expected: []api.Message{
				{Role: "system", Content: "You write programs"},
				{Role: "user", Content: "Build a counter"},
				{Role: "assistant", Content: "counter = 0"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)

			require.Len(t, result, len(tt.expected))
			for i := range result {
				assert.Equal(t, tt.expected[i].Role, result[i].Role, "message %d role", i)
				assert.Equal(t, tt.expected[i].Content, result[i].Content, "message %d content", i)
			}
		})
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	input := []model.Message{
		model.SystemMessage("sys"),
		model.UserMessage("task"),
		model.AssistantMessage("draft"),
	}

	result := ConvertToOpenAIMessages(input)
	require.Len(t, result, 3)

	assert.NotNil(t, result[0].OfSystem, "message 0: expected a system message")
	assert.NotNil(t, result[1].OfUser, "message 1: expected a user message")
	assert.NotNil(t, result[2].OfAssistant, "message 2: expected an assistant message")
}

func TestConvertToOpenAIMessagesUnknownRoleIsUser(t *testing.T) {
	result := ConvertToOpenAIMessages([]model.Message{{Role: "tool", Content: "x"}})
	require.Len(t, result, 1)
	assert.NotNil(t, result[0].OfUser, "expected unknown roles to be sent as user turns")
}

func TestAnthropicText(t *testing.T) {
	tests := []struct {
		name    string
		content []anthropic.ContentBlockUnion
		want    string
	}{
		{"no blocks", nil, ""},
		{"single text", []anthropic.ContentBlockUnion{{Type: "text", Text: "a"}}, "a"},
		{
			name: "skips non-text blocks",
			content: []anthropic.ContentBlockUnion{
				{Type: "tool_use", ID: "toolu_1"},
				{Type: "text", Text: "a"},
				{Type: "text", Text: "b"},
			},
			want: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anthropicText(tt.content))
		})
	}
}
