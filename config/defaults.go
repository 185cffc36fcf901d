package config

import "time"

const (
	DefaultSettingsPath = "./config/settings.toml"
	DefaultLLMConfig    = "./config/llm-config.json"
	DefaultPromptConfig = "./config/promt-config.json"
	DefaultLogFile      = "server.log"
)

func DefaultSettings() *Settings {
	return &Settings{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       65432,
			MaxWorkers: 16,
			ReadBuffer: 1024,
		},
		Paths: PathsConfig{
			LLMConfig:    DefaultLLMConfig,
			PromptConfig: DefaultPromptConfig,
			LogFile:      DefaultLogFile,
		},
		Pacing: PacingConfig{
			Interval: 2 * time.Second,
			Burst:    1,
		},
	}
}

// DefaultCredentials returns the placeholder credential set written on first
// run. Every field has to be edited before the relay can reach a provider.
func DefaultCredentials(now time.Time) *Credentials {
	return &Credentials{
		Endpoint:    "http://example.com/api",
		APIKey:      "test_key_123",
		Model:       "codestral-latest",
		Scope:       "GIGACHAT_API_PERS",
		LastUpdated: now.Format("2006-01-02 15:04:05.000000"),
	}
}

func GenerateSettingsTemplate() string {
	return `# Relay settings
# Location: ./config/settings.toml
# This file uses TOML format: https://toml.io

[server]
host = "0.0.0.0"
port = 65432

# Upper bound on connections handled at the same time.
# Further clients wait in the listen backlog.
max_workers = 16

# Size of the single read taken from each connection, in bytes.
read_buffer = 1024

# "0s" disables the deadline.
read_timeout = "0s"
request_timeout = "0s"

[paths]
llm_config = "./config/llm-config.json"
prompt_config = "./config/promt-config.json"
log_file = "server.log"

[pacing]
# Minimum spacing between provider calls, shared by all connections.
interval = "2s"
burst = 1

[metrics]
# Prometheus endpoint, e.g. "127.0.0.1:9464". Empty disables it.
listen = ""

[storage]
# SQLite file recording one row per request (no prompt content). Empty disables it.
request_log = ""
`
}
