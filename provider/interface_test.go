package provider_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/provider/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProviderContract defines the contract every provider satisfies as
// seen by the conversation layer.
func TestProviderContract(t *testing.T) {
	tests := []struct {
		name     string
		provider model.Provider
	}{
		{"Mock", testutil.NewMockProvider("test-model")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("BasicChat", func(t *testing.T) {
				testProviderBasicChat(t, tt.provider)
			})
			t.Run("ModelName", func(t *testing.T) {
				assert.NotEmpty(t, tt.provider.GetModel())
			})
			t.Run("HealthCheck", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				assert.NoError(t, tt.provider.Ping(ctx))
			})
			t.Run("ConcurrentChat", func(t *testing.T) {
				testProviderConcurrentChat(t, tt.provider)
			})
		})
	}
}

func testProviderBasicChat(t *testing.T, p model.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := p.Chat(ctx, testutil.SingleUserMessage("Hello"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.NotEmpty(t, reply.Content)
}

func testProviderConcurrentChat(t *testing.T, p model.Provider) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Chat(context.Background(), testutil.TestMessages()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "concurrent Chat failed")
	}
}

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	msgs := testutil.TestMessages()

	_, err := mock.Chat(context.Background(), msgs)
	require.NoError(t, err)
	msgs[0].Content = "mutated"

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.NotEqual(t, "mutated", calls[0][0].Content, "recorded call must not alias the caller's slice")
}

func TestMockProviderError(t *testing.T) {
	mock := testutil.NewMockProvider("test-model")
	wantErr := errors.New("backend down")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message) (model.Message, error) {
		return model.Message{}, wantErr
	}

	_, err := mock.Chat(context.Background(), testutil.SingleUserMessage("hi"))
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, mock.CallCount(), "expected failed calls to be recorded")
}
