package provider

import (
	"fmt"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/config"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"go.uber.org/zap"
)

// Build creates the provider selected by the credential file.
//
// This is the single entry point used at startup: the model identifier picks
// the backend (see ResolveModel) and the remaining credential fields are
// handed to that backend's constructor. GigaChat ignores the endpoint and
// always talks to the public GigaChat API.
//
// The returned provider is shared by all connections for the lifetime of
// the process.
func Build(creds *config.Credentials, logger *zap.Logger) (model.Provider, error) {
	providerType, modelName, err := ResolveModel(creds.Model)
	if err != nil {
		return nil, err
	}

	p, err := NewProvider(Config{
		Type:    providerType,
		BaseURL: creds.Endpoint,
		Model:   modelName,
		APIKey:  creds.APIKey,
		Scope:   creds.Scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	logger.Info("Initialized provider",
		zap.String("type", string(providerType)),
		zap.String("model", p.GetModel()))

	return p, nil
}
