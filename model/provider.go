package model

import "context"

// Provider abstracts the model backends (GigaChat, Codestral, Claude, Ollama)
// using provider-agnostic turns.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the conversation
// and server packages depend only on this contract.
//
// One Provider is built at startup and shared by every connection, so
// implementations must be safe for concurrent use.
type Provider interface {
	// Chat sends the turns and returns the assistant reply.
	Chat(ctx context.Context, messages []Message) (Message, error)

	// GetModel returns the model identifier requests are sent with.
	GetModel() string

	// Ping checks if the provider is reachable and the credentials are accepted.
	Ping(ctx context.Context) error
}
