package server

import "time"

// Options holds HTTP server configuration
type Options struct {
	Host               string
	Port               int
	AuthToken          string
	RequestTimeout     time.Duration
	RateLimitPerMinute int

	// Reported by the health endpoint so operators can spot a
	// half-configured deployment before connecting accounts.
	HasWebhookKey bool
	HasYandexKey  bool
}

// connectRequest is the body of POST /api/connect
type connectRequest struct {
	AccountID string `json:"accountId"`
	Phone     string `json:"phone"`
	APIID     int    `json:"apiId"`
	APIHash   string `json:"apiHash"`
}

// verifyCodeRequest is the body of POST /api/verify-code
type verifyCodeRequest struct {
	AccountID     string `json:"accountId"`
	Phone         string `json:"phone"`
	APIID         int    `json:"apiId"`
	APIHash       string `json:"apiHash"`
	PhoneCodeHash string `json:"phoneCodeHash"`
	Code          string `json:"code"`
}

// verifyPasswordRequest is the body of POST /api/verify-password
type verifyPasswordRequest struct {
	AccountID string `json:"accountId"`
	Phone     string `json:"phone"`
	APIID     int    `json:"apiId"`
	APIHash   string `json:"apiHash"`
	Password  string `json:"password"`
}

// disconnectRequest is the body of POST /api/disconnect
type disconnectRequest struct {
	AccountID string `json:"accountId"`
}

// voiceReplyRequest is the body of POST /api/voice-reply
type voiceReplyRequest struct {
	AccountID string `json:"accountId"`
	Phone     string `json:"phone"`
	APIID     int    `json:"apiId"`
	APIHash   string `json:"apiHash"`
	ChatID    int64  `json:"chatId"`
	MessageID int    `json:"messageId"`
}

// connectResponse is returned by /api/connect
type connectResponse struct {
	Success          bool   `json:"success"`
	Connected        bool   `json:"connected"`
	RequiresCode     bool   `json:"requiresCode,omitempty"`
	RequiresPassword bool   `json:"requiresPassword,omitempty"`
	PhoneCodeHash    string `json:"phoneCodeHash,omitempty"`
}

// verifyResponse is returned by /api/verify-code and /api/verify-password
type verifyResponse struct {
	Success          bool `json:"success"`
	Connected        bool `json:"connected"`
	RequiresPassword bool `json:"requiresPassword"`
}

// disconnectResponse is returned by /api/disconnect
type disconnectResponse struct {
	Success      bool `json:"success"`
	Disconnected bool `json:"disconnected"`
}

// voiceReplyResponse is returned by /api/voice-reply
type voiceReplyResponse struct {
	Success       bool   `json:"success"`
	Transcription string `json:"transcription"`
}

// errorResponse is the structured error body for every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// healthResponse is returned by /health
type healthResponse struct {
	Status        string `json:"status"`
	HasWebhookKey bool   `json:"hasWebhookKey"`
	HasYandexKey  bool   `json:"hasYandexKey"`
}
