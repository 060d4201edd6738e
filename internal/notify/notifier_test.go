package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name  string
	err   error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.calls++
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatchNoSenders(t *testing.T) {
	n := NewNotifier(nil, discardLogger())
	assert.NoError(t, n.Dispatch(context.Background(), "t", "m"))
}

func TestDispatchPartialFailure(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}

	n := NewNotifier([]Sender{bad, good}, discardLogger())
	err := n.Dispatch(context.Background(), "t", "m")

	assert.NoError(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
}

func TestDispatchAllFail(t *testing.T) {
	a := &fakeSender{name: "a", err: errors.New("down")}
	b := &fakeSender{name: "b", err: errors.New("down too")}

	n := NewNotifier([]Sender{a, b}, discardLogger())
	err := n.Dispatch(context.Background(), "t", "m")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: down too")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, jsonDecode(r, &gotBody))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("token123", "chat42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Alert", "body text"))

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat42", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "*Alert*")
	assert.Contains(t, gotBody["text"], "body text")
}

func TestDiscordSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestEmailSend(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/emails", r.URL.Path)
		require.NoError(t, jsonDecode(r, &gotBody))
		w.Write([]byte(`{"id":"re_123"}`))
	}))
	defer srv.Close()

	s := NewEmailSender("key", "alerts@example.com", "me@example.com")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Subject", "Body"))

	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, "Subject", gotBody["subject"])
	assert.Contains(t, gotBody["from"], "alerts@example.com")
}

func jsonDecode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
