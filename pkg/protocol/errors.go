package protocol

import "errors"

// Typed error kinds returned by Client implementations. Adapters classify
// the underlying library's error signals into these before returning; no
// caller above the adapter boundary inspects error text.
var (
	// ErrPasswordRequired means the code was accepted but the account
	// mandates a two-factor password
	ErrPasswordRequired = errors.New("two-factor password required")

	// ErrInvalidCode means the submitted login code was rejected
	ErrInvalidCode = errors.New("invalid confirmation code")

	// ErrCodeExpired means the login code is no longer valid
	ErrCodeExpired = errors.New("confirmation code expired")

	// ErrInvalidPassword means the two-factor password was rejected
	ErrInvalidPassword = errors.New("invalid two-factor password")

	// ErrMessageNotFound means the target message does not exist
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotVoice means the target message has no voice attachment
	ErrNotVoice = errors.New("message has no voice attachment")
)
