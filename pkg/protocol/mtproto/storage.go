package mtproto

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
)

// sessionBridge implements the wire library's session storage against an
// in-memory buffer, exposing the buffer as an opaque base64 token. An empty
// token means "no stored session": LoadSession returns the library's
// not-found sentinel, which makes it start a fresh session.
type sessionBridge struct {
	mu   sync.Mutex
	data []byte
}

// newSessionBridge seeds the bridge from a previously exported token
func newSessionBridge(token string) (*sessionBridge, error) {
	b := &sessionBridge{}
	if token == "" {
		return b, nil
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed session token: %w", err)
	}
	b.data = data
	return b, nil
}

// LoadSession implements session.Storage
func (b *sessionBridge) LoadSession(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return nil, session.ErrNotFound
	}

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// StoreSession implements session.Storage
func (b *sessionBridge) StoreSession(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = make([]byte, len(data))
	copy(b.data, data)
	return nil
}

// Token returns the current session state as an opaque string, empty when
// the library has stored nothing yet
func (b *sessionBridge) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b.data)
}
