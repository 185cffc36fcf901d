package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	MaxWorkers     int           `toml:"max_workers"`
	ReadBuffer     int           `toml:"read_buffer"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type PathsConfig struct {
	LLMConfig    string `toml:"llm_config"`
	PromptConfig string `toml:"prompt_config"`
	LogFile      string `toml:"log_file"`
}

type PacingConfig struct {
	Interval time.Duration `toml:"interval"`
	Burst    int           `toml:"burst"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"`
}

type StorageConfig struct {
	RequestLog string `toml:"request_log"`
}

// Settings is the relay's process configuration. Credentials and prompt
// templates live in their own files referenced from [paths].
type Settings struct {
	Server  ServerConfig  `toml:"server"`
	Paths   PathsConfig   `toml:"paths"`
	Pacing  PacingConfig  `toml:"pacing"`
	Metrics MetricsConfig `toml:"metrics"`
	Storage StorageConfig `toml:"storage"`
}

// Addr returns the host:port the listener binds to.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Server.Host, strconv.Itoa(s.Server.Port))
}

func (s *Settings) CredentialsPath() string {
	return ExpandPath(s.Paths.LLMConfig)
}

func (s *Settings) PromptsPath() string {
	return ExpandPath(s.Paths.PromptConfig)
}

func (s *Settings) LogPath() string {
	return ExpandPath(s.Paths.LogFile)
}

func (s *Settings) RequestLogPath() string {
	return ExpandPath(s.Storage.RequestLog)
}

func (s *Settings) applyEnvOverrides() error {
	if host := os.Getenv("RELAY_HOST"); host != "" {
		s.Server.Host = host
	}
	if port := os.Getenv("RELAY_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid RELAY_PORT %q: %w", port, err)
		}
		s.Server.Port = p
	}
	if path := os.Getenv("RELAY_LLM_CONFIG"); path != "" {
		s.Paths.LLMConfig = path
	}
	if path := os.Getenv("RELAY_PROMPT_CONFIG"); path != "" {
		s.Paths.PromptConfig = path
	}
	if path := os.Getenv("RELAY_LOG_FILE"); path != "" {
		s.Paths.LogFile = path
	}
	return nil
}

func (s *Settings) validate() error {
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", s.Server.Port)
	}
	if s.Server.MaxWorkers < 1 {
		return fmt.Errorf("server.max_workers must be at least 1, got %d", s.Server.MaxWorkers)
	}
	if s.Server.ReadBuffer < 1 {
		return fmt.Errorf("server.read_buffer must be at least 1, got %d", s.Server.ReadBuffer)
	}
	if s.Pacing.Interval < 0 {
		return fmt.Errorf("pacing.interval must not be negative")
	}
	if s.Pacing.Burst < 1 {
		return fmt.Errorf("pacing.burst must be at least 1, got %d", s.Pacing.Burst)
	}
	if s.Paths.LLMConfig == "" || s.Paths.PromptConfig == "" {
		return fmt.Errorf("paths.llm_config and paths.prompt_config are required")
	}
	return nil
}

// Load reads settings from path (missing file means defaults), then applies
// RELAY_* environment overrides.
func Load(path string) (*Settings, error) {
	cfg, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}
