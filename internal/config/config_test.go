package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "ru-RU", cfg.Speech.Language)
	assert.Equal(t, "oggopus", cfg.Speech.Format)
	assert.Equal(t, 48000, cfg.Speech.SampleRate)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "/text", cfg.Relay.TriggerCommand)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateSQLiteRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Path = "/tmp/tokens.db"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyTrigger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relay.TriggerCommand = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestStringRedactsNothingButIsValidJSON(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	assert.Contains(t, s, "\"server\"")
	assert.Contains(t, s, "\"relay\"")
}
