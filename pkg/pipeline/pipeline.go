// Package pipeline runs the voice transcription flow for one target message:
// resolve, check for a voice attachment, download, transcribe, reply, and
// forward the result downstream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/voxrelay/internal/metrics"
	"github.com/harun/voxrelay/internal/tracing"
	"github.com/harun/voxrelay/pkg/forward"
	"github.com/harun/voxrelay/pkg/protocol"
	"github.com/harun/voxrelay/pkg/relayerr"
)

// ClientResolver resolves the live protocol handle for an account
type ClientResolver interface {
	ClientFor(accountID string) (protocol.Client, error)
}

// Transcriber converts an audio payload into text
type Transcriber interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Forwarder delivers events downstream
type Forwarder interface {
	Forward(ctx context.Context, accountID, eventType, result string) error
}

// Pipeline executes transcription runs
type Pipeline struct {
	clients     ClientResolver
	stt         Transcriber
	forwarder   Forwarder
	forwarderMu sync.RWMutex
	logger      zerolog.Logger
}

// New creates a pipeline
func New(clients ClientResolver, stt Transcriber, forwarder Forwarder, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		clients:   clients,
		stt:       stt,
		forwarder: forwarder,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// SetForwarder swaps the downstream forwarder, used on config reload
func (p *Pipeline) SetForwarder(f Forwarder) {
	p.forwarderMu.Lock()
	p.forwarder = f
	p.forwarderMu.Unlock()
}

func (p *Pipeline) currentForwarder() Forwarder {
	p.forwarderMu.RLock()
	defer p.forwarderMu.RUnlock()
	return p.forwarder
}

// Run transcribes the target message and posts the text back as a reply.
// Failures up to the transcription step are reported into the conversation
// as a short human-readable message; the downstream forward never fails the
// reply that has already been sent.
func (p *Pipeline) Run(ctx context.Context, accountID string, chatID int64, messageID int) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "voxrelay.pipeline", "pipeline.run",
		attribute.String("account_id", accountID),
		attribute.Int64("chat_id", chatID),
		attribute.Int("message_id", messageID))
	defer span.End()

	start := time.Now()
	logger := p.logger.With().
		Str("account_id", accountID).
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Logger()

	client, err := p.clients.ClientFor(accountID)
	if err != nil {
		metrics.RecordTranscription("not_connected", time.Since(start))
		return "", err
	}

	text, err := p.transcribeTarget(ctx, client, chatID, messageID)
	if err != nil {
		p.reportFailure(ctx, client, chatID, messageID, err)
		metrics.RecordTranscription(relayerr.KindOf(err).String(), time.Since(start))
		return "", err
	}

	if err := client.SendReply(ctx, chatID, messageID, text); err != nil {
		metrics.RecordTranscription("reply_failed", time.Since(start))
		return "", fmt.Errorf("failed to post transcription reply: %w", err)
	}

	// Forwarding is best-effort: the user already has their reply
	if err := p.currentForwarder().Forward(ctx, accountID, forward.EventVoiceTranscribed, text); err != nil {
		logger.Warn().Err(err).Msg("Failed to forward transcription event")
	}

	metrics.RecordTranscription("ok", time.Since(start))
	logger.Info().Int("text_len", len(text)).Msg("Voice message transcribed")

	return text, nil
}

// transcribeTarget performs the fallible steps before the user-visible reply
func (p *Pipeline) transcribeTarget(ctx context.Context, client protocol.Client, chatID int64, messageID int) (string, error) {
	msg, err := client.GetMessage(ctx, chatID, messageID)
	if err != nil {
		if errors.Is(err, protocol.ErrMessageNotFound) {
			return "", relayerr.Wrap(relayerr.KindMessageNotFound, "target message not found", err)
		}
		return "", fmt.Errorf("failed to resolve target message: %w", err)
	}

	if !msg.HasVoice {
		return "", relayerr.New(relayerr.KindNotVoiceMessage, "target message has no voice attachment")
	}

	audio, err := client.DownloadVoice(ctx, chatID, messageID)
	if err != nil {
		if errors.Is(err, protocol.ErrNotVoice) {
			return "", relayerr.Wrap(relayerr.KindNotVoiceMessage, "target message has no voice attachment", err)
		}
		return "", fmt.Errorf("failed to download voice payload: %w", err)
	}

	text, err := p.stt.Recognize(ctx, audio)
	if err != nil {
		if relayerr.KindOf(err) != relayerr.KindUnknown {
			return "", err
		}
		return "", relayerr.Wrap(relayerr.KindTranscriptionFailed, "transcription failed", err)
	}

	return text, nil
}

// reportFailure posts a short human-readable error into the conversation
func (p *Pipeline) reportFailure(ctx context.Context, client protocol.Client, chatID int64, messageID int, cause error) {
	if err := client.SendReply(ctx, chatID, messageID, failureText(cause)); err != nil {
		p.logger.Warn().Err(err).
			Int64("chat_id", chatID).
			Int("message_id", messageID).
			Msg("Failed to report pipeline error into conversation")
	}
}

// failureText maps a pipeline failure onto the message shown in the chat
func failureText(err error) string {
	switch relayerr.KindOf(err) {
	case relayerr.KindMessageNotFound:
		return "Could not find the message to transcribe."
	case relayerr.KindNotVoiceMessage:
		return "That message has no voice note to transcribe."
	case relayerr.KindTranscriptionFailed:
		return "Transcription failed, please try again later."
	default:
		return "Something went wrong while transcribing."
	}
}
