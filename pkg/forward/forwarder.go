// Package forward delivers relay events to the downstream webhook consumer.
// Delivery is best-effort: failures are logged and never retried, and they
// never fail the user-visible operation that produced the event.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/internal/metrics"
	"github.com/harun/voxrelay/pkg/relayerr"
)

// EventVoiceTranscribed is the event type for a completed transcription
const EventVoiceTranscribed = "voice_transcribed"

// Event is the payload delivered to the downstream consumer
type Event struct {
	EventID   string `json:"eventId"`
	AccountID string `json:"accountId"`
	Type      string `json:"type"`
	Result    string `json:"result"`
}

// Config holds forwarder settings
type Config struct {
	URL     string        // downstream webhook URL; empty disables forwarding
	Secret  string        // bearer token for the downstream consumer
	Timeout time.Duration // request timeout (default: 15s)
}

// Forwarder posts events downstream
type Forwarder struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// New creates a forwarder
func New(cfg Config, logger zerolog.Logger) *Forwarder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Forwarder{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "forward").Logger(),
	}
}

// Enabled reports whether a downstream URL is configured
func (f *Forwarder) Enabled() bool {
	return f.cfg.URL != ""
}

// Forward delivers one event. The returned error is informational; callers
// log it at most, they never propagate it to the user.
func (f *Forwarder) Forward(ctx context.Context, accountID, eventType, result string) error {
	if !f.Enabled() {
		f.logger.Debug().Msg("No downstream webhook configured, event dropped")
		return nil
	}

	eventID, err := gonanoid.New()
	if err != nil {
		eventID = fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}

	payload, err := json.Marshal(Event{
		EventID:   eventID,
		AccountID: accountID,
		Type:      eventType,
		Result:    result,
	})
	if err != nil {
		metrics.RecordForward("error")
		return relayerr.Wrap(relayerr.KindForwardingFailed, "failed to encode event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		metrics.RecordForward("error")
		return relayerr.Wrap(relayerr.KindForwardingFailed, "failed to build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Secret)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		metrics.RecordForward("error")
		return relayerr.Wrap(relayerr.KindForwardingFailed, "webhook delivery failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordForward("error")
		return relayerr.Newf(relayerr.KindForwardingFailed, "webhook returned status %d", resp.StatusCode)
	}

	metrics.RecordForward("delivered")
	f.logger.Debug().
		Str("event_id", eventID).
		Str("account_id", accountID).
		Str("type", eventType).
		Msg("Event forwarded downstream")

	return nil
}
