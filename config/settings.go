package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LoadSettings decodes the TOML settings file over the defaults. A missing
// file is not an error.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	if path == "" || !FileExists(path) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	return cfg, nil
}

// WriteDefaultSettings writes the commented settings template unless the
// file already exists.
func WriteDefaultSettings(path string) error {
	if FileExists(path) {
		return nil
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := GenerateSettingsTemplate()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}
