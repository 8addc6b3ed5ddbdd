package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchemaAcceptsFullDocument(t *testing.T) {
	raw := []byte(`{
		"server": {"host": "127.0.0.1", "port": 3000, "auth_token": "t", "timeout": 30},
		"speech": {"api_key": "k", "language": "ru-RU", "format": "oggopus", "sample_rate": 48000, "timeout": 60},
		"webhook": {"url": "https://example.com", "secret": "s", "timeout": 15},
		"storage": {"backend": "sqlite", "path": "/tmp/t.db"},
		"relay": {"trigger_command": "/text", "challenge_ttl": 10, "sweep_interval": 5},
		"logging": {"level": "debug", "redaction": true}
	}`)
	assert.NoError(t, ValidateSchema(raw))
}

func TestValidateSchemaAcceptsEmptyDocument(t *testing.T) {
	assert.NoError(t, ValidateSchema([]byte(`{}`)))
}

func TestValidateSchemaRejectsWrongTypes(t *testing.T) {
	raw := []byte(`{"server": {"port": "3000"}}`)
	assert.Error(t, ValidateSchema(raw))
}

func TestValidateSchemaRejectsUnknownBackend(t *testing.T) {
	raw := []byte(`{"storage": {"backend": "redis"}}`)
	assert.Error(t, ValidateSchema(raw))
}

func TestValidateSchemaRejectsUnknownTopLevelKey(t *testing.T) {
	raw := []byte(`{"telegram": {}}`)
	assert.Error(t, ValidateSchema(raw))
}

func TestValidateSchemaRejectsInvalidJSON(t *testing.T) {
	assert.Error(t, ValidateSchema([]byte(`{not json`)))
}
