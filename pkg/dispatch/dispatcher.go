// Package dispatch watches authenticated sessions for the trigger command
// and hands matching replies to the transcription pipeline.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/voxrelay/pkg/protocol"
)

// defaultRunTimeout bounds one pipeline invocation started from the stream
const defaultRunTimeout = 2 * time.Minute

// Runner executes a transcription run
type Runner interface {
	Run(ctx context.Context, accountID string, chatID int64, messageID int) (string, error)
}

// Dispatcher routes incoming messages. A message fires the pipeline only
// when its whole text equals the trigger command and it replies to another
// message; everything else is ignored so routine traffic never reaches the
// downstream consumer.
type Dispatcher struct {
	trigger    string
	runner     Runner
	runTimeout time.Duration
	logger     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a dispatcher for the given trigger command
func New(trigger string, runner Runner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		trigger:    trigger,
		runner:     runner,
		runTimeout: defaultRunTimeout,
		logger:     logger.With().Str("component", "dispatch").Logger(),
		locks:      make(map[string]*sync.Mutex),
	}
}

// Attach subscribes the dispatcher to a live session. Implements the
// account manager's subscriber hook.
func (d *Dispatcher) Attach(accountID string, client protocol.Client) func() {
	d.logger.Debug().Str("account_id", accountID).Msg("Event subscription attached")
	return client.OnNewMessage(func(ctx context.Context, msg protocol.Message) {
		d.handle(ctx, accountID, client, msg)
	})
}

// handle inspects one incoming message
func (d *Dispatcher) handle(ctx context.Context, accountID string, client protocol.Client, msg protocol.Message) {
	// Exact match only: the trigger as a substring of other text never fires
	if strings.TrimSpace(msg.Text) != d.trigger {
		return
	}

	logger := d.logger.With().
		Str("account_id", accountID).
		Int64("chat_id", msg.ChatID).
		Int("message_id", msg.ID).
		Logger()

	if msg.ReplyToID == 0 {
		hint := fmt.Sprintf("Reply to a voice message with %q to get a transcription.", d.trigger)
		if err := client.SendReply(ctx, msg.ChatID, msg.ID, hint); err != nil {
			logger.Warn().Err(err).Msg("Failed to send usage hint")
		}
		return
	}

	targetID := msg.ReplyToID
	logger.Info().Int("target_id", targetID).Msg("Trigger command received")

	// Run off the event stream so slow downloads never stall updates
	go d.invoke(accountID, msg.ChatID, targetID)
}

// invoke runs the pipeline, serialized per account
func (d *Dispatcher) invoke(accountID string, chatID int64, messageID int) {
	lock := d.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.runTimeout)
	defer cancel()

	if _, err := d.runner.Run(ctx, accountID, chatID, messageID); err != nil {
		// The pipeline already reported into the conversation
		d.logger.Warn().Err(err).
			Str("account_id", accountID).
			Int64("chat_id", chatID).
			Int("message_id", messageID).
			Msg("Transcription run failed")
	}
}

// accountLock returns the per-account invocation lock
func (d *Dispatcher) accountLock(accountID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[accountID] = lock
	}
	return lock
}
