package account

// State is the authentication state of one account session
type State int

const (
	// StateNoClient means no live protocol handle exists for the account
	StateNoClient State = iota
	// StateCodeSent means a login code was dispatched and awaits submission
	StateCodeSent
	// StatePasswordRequired means the code was accepted and the account's
	// two-factor password is pending
	StatePasswordRequired
	// StateAuthenticated means the session is signed in and subscribed
	StateAuthenticated
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateNoClient:
		return "no_client"
	case StateCodeSent:
		return "code_sent"
	case StatePasswordRequired:
		return "password_required"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
