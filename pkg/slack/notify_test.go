package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilReceiver(t *testing.T) {
	var n *Notifier

	assert.NotPanics(t, func() {
		n.NotifyCrisisOpened(context.Background(), "user-1", "sess-1")
	})
	assert.NotPanics(t, func() {
		n.NotifyInvariantViolation(context.Background(), "user-1", "no-financial-advice", "detail")
	})
}

func TestNewNotifier(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		n := NewNotifier(NotifierConfig{Token: "", ChannelID: "C123"})
		assert.Nil(t, n)
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		n := NewNotifier(NotifierConfig{Token: "xoxb-test", ChannelID: ""})
		assert.Nil(t, n)
	})

	t.Run("returns notifier when configured", func(t *testing.T) {
		n := NewNotifier(NotifierConfig{Token: "xoxb-test", ChannelID: "C123"})
		assert.NotNil(t, n)
	})
}

func TestNotifier_NotifyCrisisOpened_PostsMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1234.5678"})
	}))
	defer srv.Close()

	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	n := NewNotifierWithClient(client)

	n.NotifyCrisisOpened(context.Background(), "user-1", "sess-1")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotifier_NotifyCrisisOpened_DedupsRepeatedEvent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1234.5678"})
	}))
	defer srv.Close()

	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	n := NewNotifierWithClient(client)

	n.NotifyCrisisOpened(context.Background(), "user-1", "sess-1")
	n.NotifyCrisisOpened(context.Background(), "user-1", "sess-1")
	n.NotifyCrisisOpened(context.Background(), "user-2", "sess-2")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotifier_NotifyInvariantViolation_FailsOpenOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer srv.Close()

	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	n := NewNotifierWithClient(client)

	require.NotPanics(t, func() {
		n.NotifyInvariantViolation(context.Background(), "user-1", "no-financial-advice", "gave direct stock recommendation")
	})
}
