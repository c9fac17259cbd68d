package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLen    int
		wantParts int
	}{
		{"short", "Hello", 4096, 1},
		{"exact", "Hello", 5, 1},
		{"split-needed", "Hello World, this is a test", 10, 4},
		{"empty", "", 4096, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(tt.text, tt.maxLen)
			if len(parts) != tt.wantParts {
				t.Errorf("SplitMessage() = %d parts, want %d", len(parts), tt.wantParts)
			}
		})
	}
}

func TestSplitMessage_PartsNotExceedMax(t *testing.T) {
	text := "This is a longer message that needs to be split into multiple parts for Telegram delivery."
	maxLen := 20
	parts := SplitMessage(text, maxLen)

	for i, part := range parts {
		if len(part) > maxLen {
			t.Errorf("part[%d] len=%d exceeds maxLen=%d: %q", i, len(part), maxLen, part)
		}
	}
}

func TestNewTelegramChannel_NoToken(t *testing.T) {
	if _, err := NewTelegramChannel(""); err == nil {
		t.Error("NewTelegramChannel() should error with empty token")
	}
}

func TestMapTelegramInbound(t *testing.T) {
	tests := []struct {
		name   string
		update tgUpdate
		wantOK bool
		want   string
	}{
		{"text", tgUpdate{Message: &tgMessage{Text: " 42 ", Chat: tgChat{ID: 123}}}, true, "42"},
		{"no message", tgUpdate{UpdateID: 2}, false, ""},
		{"empty text", tgUpdate{Message: &tgMessage{Chat: tgChat{ID: 123}}}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := mapTelegramInbound(tt.update)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if msg.Text != tt.want || msg.UserID != "123" || msg.Channel != "telegram" {
				t.Errorf("msg = %+v, want text %q from 123", msg, tt.want)
			}
		})
	}
}

func testChannel(url string, client *http.Client) *TelegramChannel {
	return &TelegramChannel{
		token:   "test-token",
		baseURL: url,
		client:  client,
		stop:    make(chan struct{}),
	}
}

func TestTelegramChannel_SyncCommands(t *testing.T) {
	var gotPath, gotCommands string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotCommands = r.Form.Get("commands")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer server.Close()

	ch := testChannel(server.URL, server.Client())
	if err := ch.syncCommands(context.Background()); err != nil {
		t.Fatalf("syncCommands() error = %v", err)
	}
	if gotPath != "/setMyCommands" {
		t.Fatalf("path = %q, want /setMyCommands", gotPath)
	}
	for _, c := range []string{`"start"`, `"next"`, `"concepts"`} {
		if !strings.Contains(gotCommands, c) {
			t.Errorf("commands payload = %q, missing %s", gotCommands, c)
		}
	}
}

func TestTelegramChannel_SendMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		mu.Lock()
		texts = append(texts, r.Form.Get("text"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	ch := testChannel(server.URL, server.Client())
	long := strings.Repeat("word ", 1000)
	if err := ch.SendMessage(context.Background(), "123", OutboundMessage{Text: long}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 {
		t.Errorf("requests = %d, want 2 parts", len(texts))
	}
}

func TestTelegramChannel_SendMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"bot was blocked"}`))
	}))
	defer server.Close()

	ch := testChannel(server.URL, server.Client())
	err := ch.SendMessage(context.Background(), "123", OutboundMessage{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("SendMessage() error = %v, want 403", err)
	}
}

func TestTelegramChannel_PollDeliversMessages(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getUpdates":
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":"/start","chat":{"id":99},"from":{"id":1,"first_name":"Ana"}}}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}))
	defer server.Close()

	ch := testChannel(server.URL, server.Client())
	got := make(chan InboundMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ch.Start(ctx, func(m InboundMessage) { got <- m }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ch.Stop()

	select {
	case m := <-got:
		if m.Text != "/start" || m.UserID != "99" || m.FirstName != "Ana" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
}
