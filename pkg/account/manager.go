package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/voxrelay/internal/metrics"
	"github.com/harun/voxrelay/internal/tracing"
	"github.com/harun/voxrelay/pkg/account/tokenstore"
	"github.com/harun/voxrelay/pkg/protocol"
	"github.com/harun/voxrelay/pkg/relayerr"
)

// Subscriber attaches the permanent event subscription to a freshly
// authenticated handle. The manager attaches it exactly once per successful
// authentication, never again for an already-subscribed handle.
type Subscriber interface {
	Attach(accountID string, client protocol.Client) (cancel func())
}

// Manager drives account sessions through the authentication state machine.
// It is the only mutator of the session store.
type Manager struct {
	store      *Store
	dialer     protocol.Dialer
	tokens     tokenstore.TokenStore
	subscriber Subscriber
	logger     zerolog.Logger
}

// ConnectResult is the outcome of a connect attempt
type ConnectResult struct {
	Connected        bool
	RequiresCode     bool
	RequiresPassword bool
	PhoneCodeHash    string
}

// VerifyResult is the outcome of a code or password submission
type VerifyResult struct {
	Connected        bool
	RequiresPassword bool
}

// NewManager creates an account manager
func NewManager(store *Store, dialer protocol.Dialer, tokens tokenstore.TokenStore, logger zerolog.Logger) *Manager {
	metrics.EnsureRegistered()
	return &Manager{
		store:  store,
		dialer: dialer,
		tokens: tokens,
		logger: logger.With().Str("component", "account").Logger(),
	}
}

// SetSubscriber sets the event subscription hook. Must be called before the
// first successful authentication.
func (m *Manager) SetSubscriber(sub Subscriber) {
	m.subscriber = sub
}

// Connect opens a session for the account. If a previously persisted token
// is still valid the account lands in Authenticated directly; otherwise a
// login code is dispatched. A repeated connect while a code is pending
// returns the existing phoneCodeHash instead of dispatching a second code.
func (m *Manager) Connect(ctx context.Context, creds protocol.Credentials) (ConnectResult, error) {
	unlock := m.store.Lock(creds.AccountID)
	defer unlock()

	ctx, span := tracing.StartSpan(ctx, "voxrelay.account", "account.connect",
		attribute.String("account_id", creds.AccountID))
	defer span.End()

	logger := m.logger.With().Str("account_id", creds.AccountID).Logger()

	if rec, ok := m.store.Get(creds.AccountID); ok {
		switch rec.State {
		case StateAuthenticated:
			logger.Debug().Msg("Connect on already-authenticated account")
			metrics.RecordConnect("already_connected")
			return ConnectResult{Connected: true}, nil
		case StateCodeSent:
			// A second code dispatch would trip protocol rate limits
			logger.Debug().Msg("Connect while code pending, returning existing hash")
			metrics.RecordConnect("code_pending")
			return ConnectResult{RequiresCode: true, PhoneCodeHash: rec.PendingCodeHash}, nil
		case StatePasswordRequired:
			logger.Debug().Msg("Connect while two-factor password pending")
			metrics.RecordConnect("password_pending")
			return ConnectResult{RequiresPassword: true}, nil
		}
	}

	token, err := m.tokens.Load(creds.AccountID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load persisted session token, starting fresh")
		token = ""
	}

	client, err := m.dialer.Dial(ctx, creds, token)
	if err != nil {
		metrics.RecordConnect("error")
		return ConnectResult{}, fmt.Errorf("failed to create protocol client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		metrics.RecordConnect("error")
		return ConnectResult{}, fmt.Errorf("failed to connect: %w", err)
	}

	authorized, err := client.Authorized(ctx)
	if err != nil {
		client.Disconnect()
		metrics.RecordConnect("error")
		return ConnectResult{}, fmt.Errorf("failed to check authorization: %w", err)
	}

	if authorized {
		rec := &Record{AccountID: creds.AccountID, Client: client}
		if err := m.finishAuthentication(ctx, rec); err != nil {
			client.Disconnect()
			metrics.RecordConnect("error")
			return ConnectResult{}, err
		}
		m.store.Put(rec)
		metrics.RecordConnect("connected")
		metrics.SetActiveAccounts(m.store.Len())

		logger.Info().Msg("Account connected with persisted session")
		return ConnectResult{Connected: true}, nil
	}

	hash, err := client.SendCode(ctx)
	if err != nil {
		client.Disconnect()
		metrics.RecordConnect("error")
		return ConnectResult{}, fmt.Errorf("failed to send login code: %w", err)
	}

	m.store.Put(&Record{
		AccountID:       creds.AccountID,
		State:           StateCodeSent,
		Client:          client,
		PendingCodeHash: hash,
		CodeSentAt:      time.Now(),
	})
	metrics.RecordConnect("code_sent")
	metrics.SetActiveAccounts(m.store.Len())

	logger.Info().Msg("Login code dispatched, awaiting submission")
	return ConnectResult{RequiresCode: true, PhoneCodeHash: hash}, nil
}

// VerifyCode submits the login code. An invalid or expired code tears the
// record down entirely, forcing the caller to restart from connect.
func (m *Manager) VerifyCode(ctx context.Context, accountID, phoneCodeHash, code string) (VerifyResult, error) {
	unlock := m.store.Lock(accountID)
	defer unlock()

	ctx, span := tracing.StartSpan(ctx, "voxrelay.account", "account.verify_code",
		attribute.String("account_id", accountID))
	defer span.End()

	logger := m.logger.With().Str("account_id", accountID).Logger()

	rec, ok := m.store.Get(accountID)
	if !ok || rec.Client == nil {
		metrics.RecordCodeVerification("not_connected")
		return VerifyResult{}, relayerr.New(relayerr.KindAccountNotConnected,
			"no pending login for this account, call connect first")
	}

	hash := phoneCodeHash
	if hash == "" {
		hash = rec.PendingCodeHash
	}

	err := rec.Client.SignIn(ctx, code, hash)
	switch {
	case err == nil:
		if err := m.finishAuthentication(ctx, rec); err != nil {
			metrics.RecordCodeVerification("error")
			return VerifyResult{}, err
		}
		m.store.Put(rec)
		metrics.RecordCodeVerification("connected")

		logger.Info().Msg("Account authenticated with login code")
		return VerifyResult{Connected: true}, nil

	case errors.Is(err, protocol.ErrPasswordRequired):
		rec.State = StatePasswordRequired
		m.store.Put(rec)
		metrics.RecordCodeVerification("password_required")

		logger.Info().Msg("Login code accepted, two-factor password required")
		return VerifyResult{RequiresPassword: true}, nil

	case errors.Is(err, protocol.ErrInvalidCode), errors.Is(err, protocol.ErrCodeExpired):
		m.destroy(rec)
		metrics.RecordCodeVerification("invalid_code")

		logger.Warn().Msg("Login code rejected, session discarded")
		return VerifyResult{}, relayerr.Wrap(relayerr.KindInvalidOrExpiredCode,
			"confirmation code rejected, restart the connect flow", err)

	default:
		// Unclassified failure: no state mutation
		metrics.RecordCodeVerification("error")
		return VerifyResult{}, fmt.Errorf("code verification failed: %w", err)
	}
}

// VerifyPassword submits the two-factor password. A wrong password keeps the
// record intact so the caller may retry.
func (m *Manager) VerifyPassword(ctx context.Context, accountID, password string) (VerifyResult, error) {
	unlock := m.store.Lock(accountID)
	defer unlock()

	ctx, span := tracing.StartSpan(ctx, "voxrelay.account", "account.verify_password",
		attribute.String("account_id", accountID))
	defer span.End()

	logger := m.logger.With().Str("account_id", accountID).Logger()

	rec, ok := m.store.Get(accountID)
	if !ok || rec.Client == nil {
		metrics.RecordPasswordVerification("not_connected")
		return VerifyResult{}, relayerr.New(relayerr.KindAccountNotConnected,
			"no pending login for this account, call connect first")
	}

	err := rec.Client.CheckPassword(ctx, password)
	switch {
	case err == nil:
		if err := m.finishAuthentication(ctx, rec); err != nil {
			metrics.RecordPasswordVerification("error")
			return VerifyResult{}, err
		}
		m.store.Put(rec)
		metrics.RecordPasswordVerification("connected")

		logger.Info().Msg("Account authenticated with two-factor password")
		return VerifyResult{Connected: true}, nil

	case errors.Is(err, protocol.ErrInvalidPassword):
		metrics.RecordPasswordVerification("invalid_password")

		logger.Warn().Msg("Two-factor password rejected, retry allowed")
		return VerifyResult{}, relayerr.Wrap(relayerr.KindInvalidPassword,
			"two-factor password rejected", err)

	default:
		metrics.RecordPasswordVerification("error")
		return VerifyResult{}, fmt.Errorf("password verification failed: %w", err)
	}
}

// Disconnect releases the handle and clears the record and persisted token
func (m *Manager) Disconnect(ctx context.Context, accountID string) error {
	unlock := m.store.Lock(accountID)
	defer unlock()

	_, span := tracing.StartSpan(ctx, "voxrelay.account", "account.disconnect",
		attribute.String("account_id", accountID))
	defer span.End()

	rec, ok := m.store.Get(accountID)
	if !ok {
		return relayerr.New(relayerr.KindAccountNotConnected, "account is not connected")
	}

	m.destroy(rec)
	if err := m.tokens.Delete(accountID); err != nil {
		m.logger.Warn().Err(err).Str("account_id", accountID).Msg("Failed to delete persisted session token")
	}

	m.logger.Info().Str("account_id", accountID).Msg("Account disconnected")
	return nil
}

// ClientFor returns the live handle for an authenticated account. Record
// fields are only safe to read under the per-account lock, since verification
// mutates records in place.
func (m *Manager) ClientFor(accountID string) (protocol.Client, error) {
	unlock := m.store.Lock(accountID)
	defer unlock()

	rec, ok := m.store.Get(accountID)
	if !ok || rec.State != StateAuthenticated {
		return nil, relayerr.New(relayerr.KindAccountNotConnected, "account is not connected")
	}
	return rec.Client, nil
}

// DisconnectAll tears down every live session, keeping persisted tokens so
// accounts reconnect without a fresh challenge after a restart.
func (m *Manager) DisconnectAll(ctx context.Context) {
	for _, rec := range m.store.List() {
		select {
		case <-ctx.Done():
			m.logger.Warn().Msg("Shutdown deadline reached while disconnecting accounts")
			return
		default:
		}

		unlock := m.store.Lock(rec.AccountID)
		if current, ok := m.store.Get(rec.AccountID); ok {
			m.destroy(current)
		}
		unlock()
	}
}

// DropStalePending tears down code/password challenges older than maxAge.
// Login codes expire protocol-side; clearing the stale record makes the next
// caller restart cleanly instead of submitting against a dead challenge.
func (m *Manager) DropStalePending(maxAge time.Duration) int {
	dropped := 0
	cutoff := time.Now().Add(-maxAge)

	for _, rec := range m.store.List() {
		// State and CodeSentAt may only be inspected under the per-account
		// lock; AccountID is immutable after publication
		unlock := m.store.Lock(rec.AccountID)
		current, ok := m.store.Get(rec.AccountID)
		if ok && (current.State == StateCodeSent || current.State == StatePasswordRequired) &&
			!current.CodeSentAt.After(cutoff) {
			m.destroy(current)
			dropped++
			m.logger.Info().Str("account_id", rec.AccountID).Msg("Dropped stale login challenge")
		}
		unlock()
	}

	return dropped
}

// finishAuthentication completes the transition to Authenticated: persist
// the session token, clear pending state, attach the event subscription once
func (m *Manager) finishAuthentication(ctx context.Context, rec *Record) error {
	token, err := rec.Client.ExportSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to export session token: %w", err)
	}
	if err := m.tokens.Save(rec.AccountID, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}

	rec.State = StateAuthenticated
	rec.PendingCodeHash = ""
	rec.CodeSentAt = time.Time{}

	if !rec.subscribed && m.subscriber != nil {
		rec.cancelSub = m.subscriber.Attach(rec.AccountID, rec.Client)
		rec.subscribed = true
	}

	return nil
}

// destroy cancels the subscription, disconnects the handle and removes the
// record
func (m *Manager) destroy(rec *Record) {
	if rec.cancelSub != nil {
		rec.cancelSub()
		rec.cancelSub = nil
	}
	if rec.Client != nil {
		if err := rec.Client.Disconnect(); err != nil {
			m.logger.Warn().Err(err).Str("account_id", rec.AccountID).Msg("Error disconnecting protocol client")
		}
	}
	m.store.Delete(rec.AccountID)
	metrics.SetActiveAccounts(m.store.Len())
}
