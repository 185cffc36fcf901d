package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Credentials selects and authenticates the model backend. The file is
// read once at startup and never written back except on first run.
type Credentials struct {
	Endpoint    string `json:"endpoint"`
	APIKey      string `json:"api_key"`
	Model       string `json:"model"`
	Scope       string `json:"scope"`
	LastUpdated string `json:"last_updated"`
}

// EnsureCredentialFile writes the placeholder credentials to path when no
// file exists there yet.
func EnsureCredentialFile(path string, logger *zap.Logger) error {
	if FileExists(path) {
		logger.Info("Using existing credential file", zap.String("path", path))
		return nil
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultCredentials(time.Now()), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode default credentials: %w", err)
	}

	// 0600: the file holds an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	logger.Info("Created credential file", zap.String("path", path))
	logger.Warn("Credential file holds placeholder values and must be edited", zap.String("path", path))
	return nil
}

func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", path, err)
	}

	return &creds, nil
}
