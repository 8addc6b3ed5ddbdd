package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "voxrelay.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Equal(t, DefaultConfig().Relay.TriggerCommand, cfg.Relay.TriggerCommand)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"server": {"port": 8090, "auth_token": "hunter2"},
		"relay": {"trigger_command": "/stt"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Server.AuthToken)
	assert.Equal(t, "/stt", cfg.Relay.TriggerCommand)
	// Untouched sections keep defaults
	assert.Equal(t, "ru-RU", cfg.Speech.Language)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"server": {"port": 8090}}`)
	t.Setenv("VOXRELAY_SERVER_PORT", "9999")
	t.Setenv("VOXRELAY_SPEECH_API_KEY", "yk-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "yk-secret", cfg.Speech.APIKey)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfigFile(t, `{"server": {"port": "not-a-number"}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `{"serverr": {"port": 8090}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voxrelay.json")

	loader := NewLoader(path)
	cfg := DefaultConfig()
	cfg.Server.Port = 4455
	cfg.Webhook.URL = "https://example.com/hook"

	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 4455, loaded.Server.Port)
	assert.Equal(t, "https://example.com/hook", loaded.Webhook.URL)
}

func TestGetConfigPath(t *testing.T) {
	loader := NewLoader("/etc/voxrelay/voxrelay.json")
	assert.Equal(t, "/etc/voxrelay/voxrelay.json", loader.GetConfigPath())

	fallback := NewLoader("")
	assert.Contains(t, fallback.GetConfigPath(), ".voxrelay")
}
