package protocol

import (
	"context"
)

// Credentials identify one account against the messaging protocol.
// APIID and APIHash are the application credentials the protocol vendor
// issues; Phone is the account's registered number.
type Credentials struct {
	AccountID string
	Phone     string
	APIID     int
	APIHash   string
}

// Message is the protocol-independent view of a chat message
type Message struct {
	ID        int
	ChatID    int64
	Text      string
	ReplyToID int // 0 when the message is not a reply
	HasVoice  bool
}

// NewMessageHandler receives incoming messages from a live session
type NewMessageHandler func(ctx context.Context, msg Message)

// Client is a live protocol session for one account. Implementations own the
// wire connection; callers own the authentication sequencing.
type Client interface {
	// Connect opens the underlying connection
	Connect(ctx context.Context) error

	// Authorized reports whether the session is already signed in,
	// typically because a previously stored session token is still valid
	Authorized(ctx context.Context) (bool, error)

	// SendCode dispatches a one-time login code to the account's phone and
	// returns the correlation hash required to submit it
	SendCode(ctx context.Context) (phoneCodeHash string, err error)

	// SignIn submits a login code. Returns ErrPasswordRequired when the
	// account mandates a second factor, ErrInvalidCode or ErrCodeExpired
	// when the code is rejected.
	SignIn(ctx context.Context, code, phoneCodeHash string) error

	// CheckPassword submits the two-factor password. Returns
	// ErrInvalidPassword when the credential is rejected.
	CheckPassword(ctx context.Context, password string) error

	// ExportSession returns the opaque session token for reconnecting
	// without repeating the code/password challenge
	ExportSession(ctx context.Context) (string, error)

	// GetMessage resolves a message by chat and message ID. Returns
	// ErrMessageNotFound when the message does not exist.
	GetMessage(ctx context.Context, chatID int64, messageID int) (Message, error)

	// DownloadVoice fetches the raw audio payload of a voice message.
	// Returns ErrNotVoice when the message carries no voice attachment.
	DownloadVoice(ctx context.Context, chatID int64, messageID int) ([]byte, error)

	// SendReply posts text into a chat, as a reply when replyToID is non-zero
	SendReply(ctx context.Context, chatID int64, replyToID int, text string) error

	// OnNewMessage subscribes to incoming messages and returns a cancel
	// function that detaches the subscription
	OnNewMessage(handler NewMessageHandler) (cancel func())

	// Disconnect closes the connection and releases resources
	Disconnect() error
}

// Dialer constructs a Client for an account. storedToken is the previously
// persisted session token, empty when the account has never authenticated.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials, storedToken string) (Client, error)
}
