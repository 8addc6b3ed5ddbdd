package forward

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/voxrelay/pkg/relayerr"
)

func TestForwardDeliversEvent(t *testing.T) {
	var gotAuth string
	var gotEvent Event

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotEvent)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := New(Config{URL: server.URL, Secret: "hook-secret"}, zerolog.Nop())

	err := f.Forward(context.Background(), "acct-1", EventVoiceTranscribed, "hello world")
	require.NoError(t, err)

	assert.Equal(t, "Bearer hook-secret", gotAuth)
	assert.Equal(t, "acct-1", gotEvent.AccountID)
	assert.Equal(t, "voice_transcribed", gotEvent.Type)
	assert.Equal(t, "hello world", gotEvent.Result)
	assert.NotEmpty(t, gotEvent.EventID)
}

func TestForwardServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(Config{URL: server.URL}, zerolog.Nop())

	err := f.Forward(context.Background(), "acct-1", EventVoiceTranscribed, "text")
	require.Error(t, err)
	assert.Equal(t, relayerr.KindForwardingFailed, relayerr.KindOf(err))
}

func TestForwardDisabledWithoutURL(t *testing.T) {
	f := New(Config{}, zerolog.Nop())

	assert.False(t, f.Enabled())
	assert.NoError(t, f.Forward(context.Background(), "acct-1", EventVoiceTranscribed, "text"))
}

func TestForwardUniqueEventIDs(t *testing.T) {
	seen := make(map[string]bool)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		json.NewDecoder(r.Body).Decode(&e)
		seen[e.EventID] = true
	}))
	defer server.Close()

	f := New(Config{URL: server.URL}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		require.NoError(t, f.Forward(context.Background(), "acct-1", EventVoiceTranscribed, "text"))
	}

	assert.Len(t, seen, 3)
}
