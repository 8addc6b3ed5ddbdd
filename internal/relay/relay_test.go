package relay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/voxrelay/internal/config"
	"github.com/harun/voxrelay/internal/logger"
)

func newTestRelay(t *testing.T, cfg *config.Config) *Relay {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	r, err := New(cfg, "", log)
	require.NoError(t, err)
	return r
}

func TestNewWiresDefaults(t *testing.T) {
	r := newTestRelay(t, config.DefaultConfig())

	assert.NotNil(t, r.accounts)
	assert.NotNil(t, r.pipeline)
	assert.NotNil(t, r.dispatcher)
	assert.NotNil(t, r.sweeper)
	assert.NotNil(t, r.server)
	assert.Nil(t, r.configWatcher, "no watcher without a config path")
}

func TestNewWithSQLiteBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "tokens.db")

	r := newTestRelay(t, cfg)
	require.NoError(t, r.tokens.Close())
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	r := newTestRelay(t, config.DefaultConfig())
	assert.NoError(t, r.Stop())
}

func TestApplyReloadChangesWebhookTarget(t *testing.T) {
	r := newTestRelay(t, config.DefaultConfig())

	next := config.DefaultConfig()
	next.Webhook.URL = "https://example.com/hook"
	next.Webhook.Secret = "s3cret"
	next.Logging.Level = "debug"

	r.applyReload(next)

	assert.Equal(t, "https://example.com/hook", r.config.Webhook.URL)
	assert.Equal(t, "debug", r.config.Logging.Level)
}
