// Package server exposes the HTTP API: account login flows, the
// synchronous voice-reply endpoint, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/internal/metrics"
	"github.com/harun/voxrelay/pkg/account"
	"github.com/harun/voxrelay/pkg/protocol"
)

// AccountService is the slice of the account manager the handlers need
type AccountService interface {
	Connect(ctx context.Context, creds protocol.Credentials) (account.ConnectResult, error)
	VerifyCode(ctx context.Context, accountID, phoneCodeHash, code string) (account.VerifyResult, error)
	VerifyPassword(ctx context.Context, accountID, password string) (account.VerifyResult, error)
	Disconnect(ctx context.Context, accountID string) error
}

// PipelineRunner runs the transcription pipeline for one target message
type PipelineRunner interface {
	Run(ctx context.Context, accountID string, chatID int64, messageID int) (string, error)
}

// Server is the relay HTTP server
type Server struct {
	options        Options
	server         *http.Server
	accounts       AccountService
	pipeline       PipelineRunner
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new relay HTTP server
func NewServer(options Options, accounts AccountService, pipeline PipelineRunner, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 30 * time.Second
	}

	if accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}

	metrics.EnsureRegistered()

	return &Server{
		options:     options,
		accounts:    accounts,
		pipeline:    pipeline,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute),
		logger:      logger.With().Str("component", "server").Logger(),
	}, nil
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.withTracking(s.handleHealth))
	mux.Handle("/metrics", metrics.Handler())

	for path, handler := range map[string]http.HandlerFunc{
		"/api/connect":         s.handleConnect,
		"/api/verify-code":     s.handleVerifyCode,
		"/api/verify-password": s.handleVerifyPassword,
		"/api/disconnect":      s.handleDisconnect,
		"/api/voice-reply":     s.handleVoiceReply,
	} {
		mux.HandleFunc(path, s.withTracking(s.withRequestID(s.withRateLimit(s.withAuth(handler)))))
	}

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// voice-reply downloads and transcribes synchronously
		WriteTimeout: s.options.RequestTimeout + 2*time.Minute,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Bool("auth_enabled", s.options.AuthToken != "").
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
