package relayerr

import (
	"errors"
	"fmt"
)

// Kind classifies relay failures so the HTTP boundary and the dispatcher can
// decide how to surface them without inspecting error text.
type Kind int

const (
	// KindUnknown is a failure with no specific classification
	KindUnknown Kind = iota
	// KindUnauthorized is a bad or missing bearer token
	KindUnauthorized
	// KindValidation is a request missing required fields
	KindValidation
	// KindAccountNotConnected is an operation on an account with no live session
	KindAccountNotConnected
	// KindInvalidOrExpiredCode is a rejected phone confirmation code
	KindInvalidOrExpiredCode
	// KindPasswordRequired signals a pending two-factor challenge
	KindPasswordRequired
	// KindInvalidPassword is a rejected two-factor password
	KindInvalidPassword
	// KindMessageNotFound is a missing target message
	KindMessageNotFound
	// KindNotVoiceMessage is a target message without a voice attachment
	KindNotVoiceMessage
	// KindTranscriptionFailed is a speech-to-text service failure
	KindTranscriptionFailed
	// KindForwardingFailed is a downstream webhook delivery failure
	KindForwardingFailed
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_error"
	case KindAccountNotConnected:
		return "account_not_connected"
	case KindInvalidOrExpiredCode:
		return "invalid_or_expired_code"
	case KindPasswordRequired:
		return "password_required"
	case KindInvalidPassword:
		return "invalid_password"
	case KindMessageNotFound:
		return "message_not_found"
	case KindNotVoiceMessage:
		return "not_voice_message"
	case KindTranscriptionFailed:
		return "transcription_failed"
	case KindForwardingFailed:
		return "forwarding_failed"
	default:
		return "unknown"
	}
}

// Error is a classified relay error
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping a cause
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of an error, or KindUnknown for unclassified errors
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
