package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-tutor/internal/api"
)

func dialSession(t *testing.T, serverURL, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg map[string]any) stepBody {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var reply stepBody
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return reply
}

func TestWebSocket_Loop(t *testing.T) {
	srv, _ := newServer(t, api.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	created := createSession(t, srv.Handler())
	conn := dialSession(t, ts.URL, created.SessionID)

	reply := roundTrip(t, conn, map[string]any{"type": "start"})
	if reply.Action.Type != "question" || reply.Action.Content["id"] != "q1" {
		t.Fatalf("start reply = %+v, want question q1", reply)
	}

	reply = roundTrip(t, conn, map[string]any{
		"type":             "answer",
		"question_id":      "q1",
		"user_answer":      "4",
		"response_time_ms": 1500,
	})
	if reply.Action.Type != "question" || reply.Action.Content["id"] != "q2" {
		t.Errorf("answer reply = %+v, want question q2", reply)
	}

	reply = roundTrip(t, conn, map[string]any{"type": "next_concept"})
	if reply.Action.Type != "mastery" || reply.CurrentConceptID != nil {
		t.Errorf("next_concept reply = %+v, want mastery with no concept", reply)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestWebSocket_BadMessages(t *testing.T) {
	srv, _ := newServer(t, api.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	created := createSession(t, srv.Handler())
	conn := dialSession(t, ts.URL, created.SessionID)

	reply := roundTrip(t, conn, map[string]any{"type": "dance"})
	if !strings.Contains(reply.Error, "unknown message type") {
		t.Errorf("error = %q, want unknown message type", reply.Error)
	}

	reply = roundTrip(t, conn, map[string]any{"type": "answer", "question_id": "q1"})
	if reply.Error == "" {
		t.Error("answer without fields should be rejected")
	}

	// The connection stays usable after a rejected message.
	reply = roundTrip(t, conn, map[string]any{"type": "start"})
	if reply.Error != "" || reply.Action.Type != "question" {
		t.Errorf("start reply = %+v, want question", reply)
	}
}

func TestWebSocket_UnknownSession(t *testing.T) {
	srv, _ := newServer(t, api.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sessions/nope/ws")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
