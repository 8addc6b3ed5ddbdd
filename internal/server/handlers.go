package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harun/voxrelay/internal/metrics"
	"github.com/harun/voxrelay/internal/tracing"
	"github.com/harun/voxrelay/pkg/protocol"
	"github.com/harun/voxrelay/pkg/relayerr"
)

// handleHealth reports service status and which external keys are configured
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:        "ok",
		HasWebhookKey: s.options.HasWebhookKey,
		HasYandexKey:  s.options.HasYandexKey,
	})
}

// handleConnect starts or resumes the login flow for an account
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requireFields(map[string]bool{
		"accountId": req.AccountID != "",
		"phone":     req.Phone != "",
		"apiId":     req.APIID != 0,
		"apiHash":   req.APIHash != "",
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := tracing.WithAccountID(r.Context(), req.AccountID)
	result, err := s.accounts.Connect(ctx, protocol.Credentials{
		AccountID: req.AccountID,
		Phone:     req.Phone,
		APIID:     req.APIID,
		APIHash:   req.APIHash,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, connectResponse{
		Success:          true,
		Connected:        result.Connected,
		RequiresCode:     result.RequiresCode,
		RequiresPassword: result.RequiresPassword,
		PhoneCodeHash:    result.PhoneCodeHash,
	})
}

// handleVerifyCode submits the one-time login code
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requireFields(map[string]bool{
		"accountId":     req.AccountID != "",
		"phoneCodeHash": req.PhoneCodeHash != "",
		"code":          req.Code != "",
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := tracing.WithAccountID(r.Context(), req.AccountID)
	result, err := s.accounts.VerifyCode(ctx, req.AccountID, req.PhoneCodeHash, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, verifyResponse{
		Success:          true,
		Connected:        result.Connected,
		RequiresPassword: result.RequiresPassword,
	})
}

// handleVerifyPassword submits the two-factor password
func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requireFields(map[string]bool{
		"accountId": req.AccountID != "",
		"password":  req.Password != "",
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := tracing.WithAccountID(r.Context(), req.AccountID)
	result, err := s.accounts.VerifyPassword(ctx, req.AccountID, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, verifyResponse{
		Success:   true,
		Connected: result.Connected,
	})
}

// handleDisconnect tears down the account session
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requireFields(map[string]bool{"accountId": req.AccountID != ""}); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := tracing.WithAccountID(r.Context(), req.AccountID)
	if err := s.accounts.Disconnect(ctx, req.AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, disconnectResponse{
		Success:      true,
		Disconnected: true,
	})
}

// handleVoiceReply runs the transcription pipeline synchronously
func (s *Server) handleVoiceReply(w http.ResponseWriter, r *http.Request) {
	var req voiceReplyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requireFields(map[string]bool{
		"accountId": req.AccountID != "",
		"chatId":    req.ChatID != 0,
		"messageId": req.MessageID != 0,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := tracing.WithAccountID(r.Context(), req.AccountID)
	text, err := s.pipeline.Run(ctx, req.AccountID, req.ChatID, req.MessageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, voiceReplyResponse{
		Success:       true,
		Transcription: text,
	})
}

// decode reads a JSON body, writing a validation error on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, relayerr.Wrap(relayerr.KindValidation, "invalid JSON body", err))
		return false
	}
	return true
}

// requireFields returns a validation error naming the first missing field
func requireFields(fields map[string]bool) error {
	// Deterministic order so error messages are stable
	order := []string{"accountId", "phone", "apiId", "apiHash", "phoneCodeHash", "code", "password", "chatId", "messageId"}
	for _, name := range order {
		present, checked := fields[name]
		if checked && !present {
			return relayerr.Newf(relayerr.KindValidation, "missing required field: %s", name)
		}
	}
	return nil
}

// writeJSON writes a success response and records the request metric
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to encode response")
	}
	metrics.RecordHTTPRequest(r.URL.Path, status)
}

// writeError converts an error to the structured JSON error shape
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := relayerr.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	var relErr *relayerr.Error
	if errors.As(err, &relErr) {
		msg = relErr.Msg
	}

	s.logger.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Str("kind", kind.String()).
		Str("request_id", tracing.GetRequestID(r.Context())).
		Msg("Request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{
		Success: false,
		Error:   kind.String(),
		Message: msg,
	}); encErr != nil {
		s.logger.Error().Err(encErr).Str("path", r.URL.Path).Msg("Failed to encode error response")
	}
	metrics.RecordHTTPRequest(r.URL.Path, status)
}

// statusFor maps an error kind to an HTTP status code
func statusFor(kind relayerr.Kind) int {
	switch kind {
	case relayerr.KindUnauthorized:
		return http.StatusUnauthorized
	case relayerr.KindValidation, relayerr.KindInvalidOrExpiredCode,
		relayerr.KindInvalidPassword, relayerr.KindNotVoiceMessage:
		return http.StatusBadRequest
	case relayerr.KindAccountNotConnected:
		return http.StatusConflict
	case relayerr.KindMessageNotFound:
		return http.StatusNotFound
	case relayerr.KindTranscriptionFailed, relayerr.KindForwardingFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
