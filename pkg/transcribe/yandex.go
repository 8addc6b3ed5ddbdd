// Package transcribe wraps the Yandex SpeechKit recognition endpoint.
// Voice notes arrive as OGG/Opus, which the service accepts raw.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/pkg/relayerr"
)

const defaultEndpoint = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"

// Config holds transcription client settings
type Config struct {
	APIKey          string
	Endpoint        string        // recognition endpoint (default: Yandex SpeechKit v1)
	Language        string        // BCP-47 language code (default: ru-RU)
	Format          string        // audio container (default: oggopus)
	SampleRateHertz int           // default: 48000
	Timeout         time.Duration // request timeout (default: 60s)
}

// Client calls the speech recognition service
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// recognizeResponse is the service's JSON reply
type recognizeResponse struct {
	Result       string `json:"result"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// New creates a transcription client
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "ru-RU"
	}
	if cfg.Format == "" {
		cfg.Format = "oggopus"
	}
	if cfg.SampleRateHertz == 0 {
		cfg.SampleRateHertz = 48000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "transcribe").Logger(),
	}
}

// Recognize submits an audio payload and returns the transcribed text
func (c *Client) Recognize(ctx context.Context, audio []byte) (string, error) {
	if c.cfg.APIKey == "" {
		return "", relayerr.New(relayerr.KindTranscriptionFailed, "speech service API key is not configured")
	}
	if len(audio) == 0 {
		return "", relayerr.New(relayerr.KindTranscriptionFailed, "empty audio payload")
	}

	query := url.Values{}
	query.Set("lang", c.cfg.Language)
	query.Set("format", c.cfg.Format)
	query.Set("sampleRateHertz", strconv.Itoa(c.cfg.SampleRateHertz))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"?"+query.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build recognition request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", relayerr.Wrap(relayerr.KindTranscriptionFailed, "speech service call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", relayerr.Wrap(relayerr.KindTranscriptionFailed, "failed to read speech service response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Speech service returned an error")
		return "", relayerr.Newf(relayerr.KindTranscriptionFailed, "speech service returned status %d", resp.StatusCode)
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", relayerr.Wrap(relayerr.KindTranscriptionFailed, "malformed speech service response", err)
	}
	if parsed.ErrorCode != "" {
		return "", relayerr.Newf(relayerr.KindTranscriptionFailed, "speech service error %s: %s", parsed.ErrorCode, parsed.ErrorMessage)
	}

	c.logger.Debug().
		Int("audio_bytes", len(audio)).
		Int("text_len", len(parsed.Result)).
		Dur("duration", time.Since(start)).
		Msg("Audio transcribed")

	return parsed.Result, nil
}
