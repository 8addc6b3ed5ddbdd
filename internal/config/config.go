package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main VoxRelay configuration
type Config struct {
	// Server holds the HTTP API server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Speech holds the speech recognition settings
	Speech SpeechConfig `json:"speech" mapstructure:"speech"`

	// Webhook holds the downstream event forwarding settings
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`

	// Storage holds session token persistence settings
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Relay holds trigger and session housekeeping settings
	Relay RelayConfig `json:"relay" mapstructure:"relay"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      int    `json:"port" mapstructure:"port"`
	AuthToken string `json:"auth_token" mapstructure:"auth_token"`
	Timeout   int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// SpeechConfig holds Yandex SpeechKit configuration
type SpeechConfig struct {
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	Endpoint   string `json:"endpoint" mapstructure:"endpoint"`
	Language   string `json:"language" mapstructure:"language"`
	Format     string `json:"format" mapstructure:"format"`
	SampleRate int    `json:"sample_rate" mapstructure:"sample_rate"`
	Timeout    int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// WebhookConfig holds downstream webhook configuration
type WebhookConfig struct {
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// StorageConfig holds session token persistence settings
type StorageConfig struct {
	// Backend is either "memory" or "sqlite"
	Backend string `json:"backend" mapstructure:"backend"`
	Path    string `json:"path" mapstructure:"path"`
}

// RelayConfig holds trigger command and challenge housekeeping settings
type RelayConfig struct {
	TriggerCommand string `json:"trigger_command" mapstructure:"trigger_command"`
	// ChallengeTTL is how long a pending login code stays valid, in minutes
	ChallengeTTL int `json:"challenge_ttl" mapstructure:"challenge_ttl"`
	// SweepInterval is how often stale challenges are pruned, in minutes
	SweepInterval int `json:"sweep_interval" mapstructure:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3000,
			Timeout: 30,
		},
		Speech: SpeechConfig{
			Endpoint:   "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize",
			Language:   "ru-RU",
			Format:     "oggopus",
			SampleRate: 48000,
			Timeout:    60,
		},
		Webhook: WebhookConfig{
			Timeout: 15,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Relay: RelayConfig{
			TriggerCommand: "/text",
			ChallengeTTL:   10,
			SweepInterval:  5,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server timeout must be positive, got %d", c.Server.Timeout)
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be: memory, sqlite)", c.Storage.Backend)
	}

	if c.Relay.TriggerCommand == "" {
		return fmt.Errorf("trigger command cannot be empty")
	}
	if c.Relay.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge TTL must be positive, got %d", c.Relay.ChallengeTTL)
	}
	if c.Relay.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %d", c.Relay.SweepInterval)
	}

	if c.Webhook.URL != "" && c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive, got %d", c.Webhook.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
