package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/voxrelay/pkg/protocol"
)

// streamClient captures the attached handler and records replies
type streamClient struct {
	mu       sync.Mutex
	handler  protocol.NewMessageHandler
	detached bool
	replies  []string
}

func (s *streamClient) Connect(context.Context) error                { return nil }
func (s *streamClient) Authorized(context.Context) (bool, error)     { return true, nil }
func (s *streamClient) SendCode(context.Context) (string, error)     { return "", nil }
func (s *streamClient) SignIn(context.Context, string, string) error { return nil }
func (s *streamClient) CheckPassword(context.Context, string) error  { return nil }
func (s *streamClient) ExportSession(context.Context) (string, error) { return "", nil }
func (s *streamClient) Disconnect() error                            { return nil }

func (s *streamClient) GetMessage(context.Context, int64, int) (protocol.Message, error) {
	return protocol.Message{}, protocol.ErrMessageNotFound
}
func (s *streamClient) DownloadVoice(context.Context, int64, int) ([]byte, error) {
	return nil, protocol.ErrNotVoice
}

func (s *streamClient) SendReply(_ context.Context, _ int64, _ int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, text)
	return nil
}

func (s *streamClient) OnNewMessage(h protocol.NewMessageHandler) func() {
	s.handler = h
	return func() { s.detached = true }
}

func (s *streamClient) deliver(msg protocol.Message) {
	s.handler(context.Background(), msg)
}

func (s *streamClient) replyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// recordingRunner records invocations and can simulate slow runs
type recordingRunner struct {
	mu        sync.Mutex
	runs      []runCall
	delay     time.Duration
	active    int
	maxActive int
	done      chan struct{}
}

type runCall struct {
	accountID string
	chatID    int64
	messageID int
}

func (r *recordingRunner) Run(_ context.Context, accountID string, chatID int64, messageID int) (string, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.active--
	r.runs = append(r.runs, runCall{accountID, chatID, messageID})
	r.mu.Unlock()

	if r.done != nil {
		r.done <- struct{}{}
	}
	return "text", nil
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func TestTriggerOnReplyInvokesPipeline(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{done: make(chan struct{}, 1)}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	defer cancel()

	client.deliver(protocol.Message{ID: 10, ChatID: 42, Text: "/text", ReplyToID: 7})

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline was not invoked")
	}

	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, runCall{"acct-1", 42, 7}, runner.runs[0])
	assert.Equal(t, 0, client.replyCount(), "no extra chat traffic on a valid trigger")
}

func TestTriggerMatchIsExact(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	defer cancel()

	for _, text := range []string{
		"please /text this",
		"/texting",
		"/TEXT",
		"something else",
		"",
	} {
		client.deliver(protocol.Message{ID: 10, ChatID: 42, Text: text, ReplyToID: 7})
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, runner.callCount(), "substring or case variants must not fire")
	assert.Equal(t, 0, client.replyCount())
}

func TestTriggerWithSurroundingWhitespace(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{done: make(chan struct{}, 1)}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	defer cancel()

	client.deliver(protocol.Message{ID: 10, ChatID: 42, Text: "  /text \n", ReplyToID: 7})

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline was not invoked")
	}
	assert.Equal(t, 1, runner.callCount())
}

func TestTriggerWithoutReplySendsHint(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	defer cancel()

	client.deliver(protocol.Message{ID: 10, ChatID: 42, Text: "/text"})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, client.replyCount(), "exactly one usage hint")
	assert.Contains(t, client.replies[0], "/text")
	assert.Equal(t, 0, runner.callCount(), "no pipeline run for a non-reply trigger")
}

func TestInvocationsSerializedPerAccount(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{delay: 50 * time.Millisecond, done: make(chan struct{}, 2)}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	defer cancel()

	client.deliver(protocol.Message{ID: 10, ChatID: 42, Text: "/text", ReplyToID: 7})
	client.deliver(protocol.Message{ID: 11, ChatID: 42, Text: "/text", ReplyToID: 8})

	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatal("pipeline run did not complete")
		}
	}

	assert.Equal(t, 2, runner.callCount())
	assert.Equal(t, 1, runner.maxActive, "runs for one account never interleave")
}

func TestDetachStopsDelivery(t *testing.T) {
	client := &streamClient{}
	runner := &recordingRunner{}
	d := New("/text", runner, zerolog.Nop())

	cancel := d.Attach("acct-1", client)
	cancel()

	assert.True(t, client.detached)
}
