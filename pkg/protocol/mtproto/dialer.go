package mtproto

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/pkg/protocol"
)

// Dialer constructs MTProto clients
type Dialer struct {
	logger zerolog.Logger
}

// NewDialer creates an MTProto dialer
func NewDialer(logger zerolog.Logger) *Dialer {
	return &Dialer{logger: logger}
}

// Dial implements protocol.Dialer
func (d *Dialer) Dial(_ context.Context, creds protocol.Credentials, storedToken string) (protocol.Client, error) {
	if creds.APIID == 0 || creds.APIHash == "" {
		return nil, fmt.Errorf("api credentials are required")
	}
	if creds.Phone == "" {
		return nil, fmt.Errorf("phone number is required")
	}

	return newClient(creds, storedToken, d.logger)
}
