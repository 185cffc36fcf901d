package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
)

// MockProvider implements model.Provider for testing. Every Chat call is
// recorded so tests can assert on the exact turns each call received.
type MockProvider struct {
	// Configurable responses
	ChatFunc func(ctx context.Context, messages []model.Message) (model.Message, error)
	PingFunc func(ctx context.Context) error

	mu           sync.Mutex
	calls        [][]model.Message
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.ChatFunc = mock.defaultChat
	mock.PingFunc = mock.defaultPing
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message) (model.Message, error) {
	return model.AssistantMessage("Mock response"), nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, slices.Clone(messages))
	m.mu.Unlock()

	return m.ChatFunc(ctx, messages)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Calls returns the turns passed to each Chat call, in call order.
func (m *MockProvider) Calls() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
