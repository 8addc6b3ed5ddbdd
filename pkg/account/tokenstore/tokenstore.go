// Package tokenstore persists the opaque session token each account
// receives once authenticated. Only the token survives here; pending
// code/password challenges are in-memory state and are never stored.
package tokenstore

// TokenStore stores one session token per account
type TokenStore interface {
	// Load returns the stored token for an account, empty when none exists
	Load(accountID string) (string, error)

	// Save stores or replaces the token for an account
	Save(accountID, token string) error

	// Delete removes the token for an account
	Delete(accountID string) error

	// Close releases any backing resources
	Close() error
}
