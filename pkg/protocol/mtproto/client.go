// Package mtproto adapts the gotd/td user-session client to the
// protocol.Client interface. All knowledge of the wire library, including
// classification of its error signals, stays inside this package.
package mtproto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/pkg/protocol"
)

// disconnectGrace bounds how long Disconnect waits for the run loop to stop
const disconnectGrace = 5 * time.Second

// Client is a live MTProto session for one account
type Client struct {
	creds   protocol.Credentials
	client  *telegram.Client
	session *sessionBridge
	peers   *peerCache
	logger  zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	handlers map[int]protocol.NewMessageHandler
	nextID   int
}

// newClient builds an unconnected client around a fresh gotd instance
func newClient(creds protocol.Credentials, storedToken string, logger zerolog.Logger) (*Client, error) {
	bridge, err := newSessionBridge(storedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session token: %w", err)
	}

	c := &Client{
		creds:    creds,
		session:  bridge,
		peers:    newPeerCache(),
		logger:   logger.With().Str("component", "mtproto").Str("account_id", creds.AccountID).Logger(),
		done:     make(chan struct{}),
		handlers: make(map[int]protocol.NewMessageHandler),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		c.peers.observe(e)
		c.deliver(ctx, update.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		c.peers.observe(e)
		c.deliver(ctx, update.Message)
		return nil
	})

	c.client = telegram.NewClient(creds.APIID, creds.APIHash, telegram.Options{
		SessionStorage: bridge,
		UpdateHandler:  dispatcher,
	})

	return c, nil
}

// Connect opens the connection and keeps it alive in the background until
// Disconnect is called
func (c *Client) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	ready := make(chan struct{})
	errC := make(chan error, 1)

	go func() {
		defer close(c.done)
		err := c.client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
		errC <- err
	}()

	select {
	case <-ready:
		c.logger.Debug().Msg("Protocol connection established")
		return nil
	case err := <-errC:
		cancel()
		return fmt.Errorf("failed to open protocol connection: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Disconnect stops the run loop and waits briefly for it to unwind
func (c *Client) Disconnect() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	select {
	case <-c.done:
	case <-time.After(disconnectGrace):
		c.logger.Warn().Msg("Protocol connection did not close within grace period")
	}

	c.logger.Debug().Msg("Protocol connection closed")
	return nil
}

// Authorized reports whether the restored session is already signed in
func (c *Client) Authorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to query authorization status: %w", err)
	}
	return status.Authorized, nil
}

// SendCode dispatches a one-time login code and returns the correlation hash
func (c *Client) SendCode(ctx context.Context) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, c.creds.Phone, auth.SendCodeOptions{})
	if err != nil {
		return "", classifyAuthError(err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}

	c.logger.Info().Msg("Login code dispatched")
	return code.PhoneCodeHash, nil
}

// SignIn submits the login code
func (c *Client) SignIn(ctx context.Context, code, phoneCodeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, c.creds.Phone, code, phoneCodeHash)
	if err != nil {
		return classifyAuthError(err)
	}

	c.logger.Info().Msg("Signed in with login code")
	return nil
}

// CheckPassword submits the two-factor password
func (c *Client) CheckPassword(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	if err != nil {
		return classifyAuthError(err)
	}

	c.logger.Info().Msg("Signed in with two-factor password")
	return nil
}

// ExportSession returns the opaque token for the current session state
func (c *Client) ExportSession(ctx context.Context) (string, error) {
	return c.session.Token(), nil
}

// OnNewMessage registers a handler for incoming messages
func (c *Client) OnNewMessage(handler protocol.NewMessageHandler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// deliver converts an update into the protocol message shape and fans it out
func (c *Client) deliver(ctx context.Context, raw tg.MessageClass) {
	msg, ok := raw.(*tg.Message)
	if !ok || msg.Out {
		return
	}

	converted := convertMessage(msg)

	c.mu.Lock()
	handlers := make([]protocol.NewMessageHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ctx, converted)
	}
}

// convertMessage maps a raw message onto protocol.Message
func convertMessage(msg *tg.Message) protocol.Message {
	out := protocol.Message{
		ID:   msg.ID,
		Text: msg.Message,
	}

	switch peer := msg.PeerID.(type) {
	case *tg.PeerUser:
		out.ChatID = peer.UserID
	case *tg.PeerChat:
		out.ChatID = peer.ChatID
	case *tg.PeerChannel:
		out.ChatID = peer.ChannelID
	}

	if reply, ok := msg.GetReplyTo(); ok {
		if header, ok := reply.(*tg.MessageReplyHeader); ok {
			out.ReplyToID = header.ReplyToMsgID
		}
	}

	if _, ok := voiceDocument(msg); ok {
		out.HasVoice = true
	}

	return out
}
