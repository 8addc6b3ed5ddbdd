// Package relay wires the whole service together: config, logging,
// token storage, the protocol dialer, the account manager, the
// transcription pipeline, the dispatcher and the HTTP server.
package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/voxrelay/internal/config"
	"github.com/harun/voxrelay/internal/logger"
	"github.com/harun/voxrelay/internal/server"
	"github.com/harun/voxrelay/internal/tracing"
	"github.com/harun/voxrelay/pkg/account"
	"github.com/harun/voxrelay/pkg/account/tokenstore"
	"github.com/harun/voxrelay/pkg/dispatch"
	"github.com/harun/voxrelay/pkg/forward"
	"github.com/harun/voxrelay/pkg/pipeline"
	"github.com/harun/voxrelay/pkg/protocol/mtproto"
	"github.com/harun/voxrelay/pkg/sweeper"
	"github.com/harun/voxrelay/pkg/transcribe"
)

// Relay is the composed service
type Relay struct {
	config *config.Config
	logger *logger.Logger

	tokens        tokenstore.TokenStore
	accounts      *account.Manager
	dispatcher    *dispatch.Dispatcher
	pipeline      *pipeline.Pipeline
	sweeper       *sweeper.Sweeper
	server        *server.Server
	configWatcher *config.Watcher
	configPath    string

	running        bool
	mu             sync.Mutex
	tracingEnabled bool
}

// New builds the service from configuration. The config path is kept for
// hot-reload; pass empty to disable the watcher.
func New(cfg *config.Config, configPath string, log *logger.Logger) (*Relay, error) {
	r := &Relay{
		config:     cfg,
		logger:     log,
		configPath: configPath,
	}

	if err := tracing.Init("voxrelay"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
	} else {
		r.tracingEnabled = true
	}

	if err := r.initialize(); err != nil {
		if r.tracingEnabled {
			_ = tracing.Shutdown(context.Background())
			r.tracingEnabled = false
		}
		return nil, err
	}

	return r, nil
}

// initialize creates the components in dependency order
func (r *Relay) initialize() error {
	zl := r.logger.GetZerolog()

	// Token store
	switch r.config.Storage.Backend {
	case "sqlite":
		store, err := tokenstore.NewSQLite(r.config.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open token store: %w", err)
		}
		r.tokens = store
		r.logger.Info().Str("path", r.config.Storage.Path).Msg("SQLite token store opened")
	default:
		r.tokens = tokenstore.NewMemory()
		r.logger.Info().Msg("In-memory token store initialized")
	}

	// Account manager over the MTProto dialer
	dialer := mtproto.NewDialer(zl)
	r.accounts = account.NewManager(account.NewStore(), dialer, r.tokens, zl)
	r.logger.Info().Msg("Account manager initialized")

	// Transcription pipeline
	stt := transcribe.New(transcribe.Config{
		APIKey:          r.config.Speech.APIKey,
		Endpoint:        r.config.Speech.Endpoint,
		Language:        r.config.Speech.Language,
		Format:          r.config.Speech.Format,
		SampleRateHertz: r.config.Speech.SampleRate,
		Timeout:         time.Duration(r.config.Speech.Timeout) * time.Second,
	}, zl)

	forwarder := forward.New(forward.Config{
		URL:     r.config.Webhook.URL,
		Secret:  r.config.Webhook.Secret,
		Timeout: time.Duration(r.config.Webhook.Timeout) * time.Second,
	}, zl)

	r.pipeline = pipeline.New(r.accounts, stt, forwarder, zl)
	r.logger.Info().
		Bool("forwarding_enabled", forwarder.Enabled()).
		Msg("Transcription pipeline initialized")

	// Dispatcher watches authenticated sessions for the trigger command
	r.dispatcher = dispatch.New(r.config.Relay.TriggerCommand, r.pipeline, zl)
	r.accounts.SetSubscriber(r.dispatcher)
	r.logger.Info().
		Str("trigger", r.config.Relay.TriggerCommand).
		Msg("Command dispatcher initialized")

	// Stale-challenge sweeper
	r.sweeper = sweeper.New(r.accounts,
		time.Duration(r.config.Relay.ChallengeTTL)*time.Minute, zl)

	// HTTP boundary
	srv, err := server.NewServer(server.Options{
		Host:           r.config.Server.Host,
		Port:           r.config.Server.Port,
		AuthToken:      r.config.Server.AuthToken,
		RequestTimeout: time.Duration(r.config.Server.Timeout) * time.Second,
		HasWebhookKey:  r.config.Webhook.Secret != "",
		HasYandexKey:   r.config.Speech.APIKey != "",
	}, r.accounts, r.pipeline, zl)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	r.server = srv

	// Config hot-reload applies log level and webhook target changes
	if r.configPath != "" {
		watcher, err := config.NewWatcher(r.configPath, r.applyReload, zl)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Config watcher unavailable, hot-reload disabled")
		} else {
			r.configWatcher = watcher
		}
	}

	return nil
}

// applyReload picks up the settings that are safe to change at runtime
func (r *Relay) applyReload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Logging.Level != r.config.Logging.Level {
		r.logger.SetLevel(cfg.Logging.Level)
		r.logger.Info().Str("level", cfg.Logging.Level).Msg("Log level updated")
	}

	if cfg.Webhook != r.config.Webhook {
		r.pipeline.SetForwarder(forward.New(forward.Config{
			URL:     cfg.Webhook.URL,
			Secret:  cfg.Webhook.Secret,
			Timeout: time.Duration(cfg.Webhook.Timeout) * time.Second,
		}, r.logger.GetZerolog()))
		r.logger.Info().Msg("Webhook target updated")
	}

	r.config.Logging = cfg.Logging
	r.config.Webhook = cfg.Webhook
}

// Start starts the background services and the HTTP server. It blocks
// until the server stops.
func (r *Relay) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay is already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info().Msg("Starting VoxRelay")

	if err := r.sweeper.Start(time.Duration(r.config.Relay.SweepInterval) * time.Minute); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	if r.configWatcher != nil {
		if err := r.configWatcher.Start(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to start config watcher")
		}
	}

	return r.server.Start()
}

// Stop shuts everything down in reverse order
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.logger.Info().Msg("Stopping VoxRelay")

	var firstErr error

	if err := r.server.Stop(); err != nil {
		firstErr = err
	}

	if r.configWatcher != nil {
		r.configWatcher.Stop()
	}

	r.sweeper.Stop()

	// Tear down live protocol sessions
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	r.accounts.DisconnectAll(ctx)

	if err := r.tokens.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if r.tracingEnabled {
		if err := tracing.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
		r.tracingEnabled = false
	}

	r.logger.Info().Msg("VoxRelay stopped")
	return firstErr
}

// Run starts the relay and blocks until SIGINT or SIGTERM
func (r *Relay) Run() error {
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("relay panicked: %v", rec)
			}
		}()
		errCh <- r.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		r.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case err := <-errCh:
		if err != nil {
			r.logger.Error().Err(err).Msg("Relay terminated unexpectedly")
			_ = r.Stop()
			return err
		}
	}

	if err := r.Stop(); err != nil {
		r.logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}
	return nil
}
