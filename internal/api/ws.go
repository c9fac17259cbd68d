package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

const (
	wsReadLimit   = 4096
	wsIdleTimeout = 10 * time.Minute
	wsWriteWait   = 10 * time.Second
)

// Message types accepted on the WebSocket.
const (
	wsStart       = "start"
	wsAnswer      = "answer"
	wsNextConcept = "next_concept"
)

// wsReply carries either a step or an error. Errors keep the connection open
// unless the session is gone.
type wsReply struct {
	*stepResponse
	Error string `json:"error,omitempty"`
}

// handleWebSocket runs the loop for one session over a WebSocket. Each client
// message is {"type": "start"|"answer"|"next_concept", ...answer fields} and
// gets exactly one reply.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, _, err := s.tutor.Snapshot(id); err != nil {
		writeTutorError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	ctx := r.Context()
	slog.Info("websocket connected", "session_id", id)

	for {
		var msg answerRequest
		readCtx, cancel := context.WithTimeout(ctx, wsIdleTimeout)
		err := wsjson.Read(readCtx, conn, &msg)
		cancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.Info("websocket closed", "session_id", id, "error", err)
			}
			return
		}

		reply, fatal := s.dispatch(ctx, id, msg)
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteWait)
		err = wsjson.Write(writeCtx, conn, reply)
		cancel()
		if err != nil {
			slog.Warn("websocket write failed", "session_id", id, "error", err)
			return
		}
		if fatal {
			conn.Close(websocket.StatusPolicyViolation, reply.Error)
			return
		}
	}
}

// dispatch runs one client message. fatal reports that the session can no
// longer be served on this connection.
func (s *Server) dispatch(ctx context.Context, sessionID string, msg answerRequest) (reply wsReply, fatal bool) {
	var (
		step tutor.Step
		err  error
	)
	switch msg.Type {
	case wsStart:
		step, err = s.tutor.Start(ctx, sessionID)
	case wsAnswer:
		if verr := msg.validate(); verr != nil {
			return wsReply{Error: verr.Error()}, false
		}
		step, err = s.tutor.Answer(ctx, sessionID, msg.QuestionID.String(), msg.UserAnswer.String(), msg.responseTime())
	case wsNextConcept:
		step, err = s.tutor.Advance(ctx, sessionID)
	default:
		return wsReply{Error: "unknown message type " + `"` + msg.Type + `"`}, false
	}

	switch {
	case errors.Is(err, tutor.ErrSessionNotFound):
		return wsReply{Error: "session not found"}, true
	case errors.Is(err, tutor.ErrNotInitialized):
		return wsReply{Error: "tutor failed to initialize"}, true
	case err != nil:
		slog.Error("websocket request failed", "session_id", sessionID, "error", err)
		return wsReply{Error: "internal error"}, false
	}

	resp := s.stepResponse(step)
	return wsReply{stepResponse: &resp}, false
}
