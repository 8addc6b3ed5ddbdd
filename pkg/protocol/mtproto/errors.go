package mtproto

import (
	"errors"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"github.com/harun/voxrelay/pkg/protocol"
)

// classifyAuthError maps the wire library's auth error signals onto the
// typed protocol kinds. Anything unrecognized passes through unchanged so
// callers treat it as a generic failure without mutating auth state.
func classifyAuthError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return protocol.ErrPasswordRequired
	case tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return protocol.ErrPasswordRequired
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY", "PHONE_CODE_HASH_EMPTY"):
		return protocol.ErrInvalidCode
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return protocol.ErrCodeExpired
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return protocol.ErrInvalidPassword
	default:
		return err
	}
}
