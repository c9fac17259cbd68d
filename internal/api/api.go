// Package api exposes the tutoring loop over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/report"
	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

const maxBodyBytes = 64 << 10

// Tutor is the session surface the handlers drive. *tutor.Registry
// implements it, including as a nil pointer.
type Tutor interface {
	Create(ctx context.Context, learnerID string) (string, tutor.Step, error)
	Start(ctx context.Context, sessionID string) (tutor.Step, error)
	Answer(ctx context.Context, sessionID, questionID, userAnswer string, responseTimeMs int64) (tutor.Step, error)
	Advance(ctx context.Context, sessionID string) (tutor.Step, error)
	Snapshot(sessionID string) (learner.State, string, error)
	Concepts() ([]content.Concept, error)
	Close(sessionID string) error
}

// Check reports whether a dependency is healthy.
type Check func(ctx context.Context) error

// Options configures the HTTP surface.
type Options struct {
	// ExposeAnswers includes the stored answer in question payloads.
	ExposeAnswers bool
	// Catalog resolves question concepts for reports. Optional.
	Catalog report.Catalog
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check
}

// Server holds the HTTP handlers.
type Server struct {
	tutor Tutor
	opts  Options
}

// NewServer creates the HTTP surface for a tutor.
func NewServer(t Tutor, opts Options) *Server {
	return &Server{tutor: t, opts: opts}
}

// Handler returns the router with every endpoint registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /concepts", s.handleConcepts)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("POST /sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /sessions/{id}/answer", s.handleAnswer)
	mux.HandleFunc("POST /sessions/{id}/next-concept", s.handleNextConcept)
	mux.HandleFunc("GET /sessions/{id}/report.xlsx", s.handleReport)
	mux.HandleFunc("GET /sessions/{id}/ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tutor.Concepts(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	for name, check := range s.opts.Checks {
		if err := check(r.Context()); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": name + " unavailable"})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *Server) handleConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := s.tutor.Concepts()
	if err != nil {
		writeTutorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": concepts})
}

type createSessionRequest struct {
	LearnerID string `json:"learner_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, step, err := s.tutor.Create(r.Context(), req.LearnerID)
	if err != nil {
		writeTutorError(w, err)
		return
	}
	concepts, err := s.tutor.Concepts()
	if err != nil {
		writeTutorError(w, err)
		return
	}

	resp := s.stepResponse(step)
	resp.SessionID = id
	resp.Concepts = concepts
	writeJSON(w, http.StatusCreated, resp)
}

type sessionResponse struct {
	SessionID        string             `json:"session_id"`
	LearnerID        string             `json:"learner_id"`
	CurrentConceptID *string            `json:"current_concept_id"`
	Answered         int                `json:"answered"`
	Mastery          map[string]float64 `json:"mastery"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, concept, err := s.tutor.Snapshot(id)
	if err != nil {
		writeTutorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:        id,
		LearnerID:        st.ID,
		CurrentConceptID: optional(concept),
		Answered:         len(st.History),
		Mastery:          st.Mastery,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.tutor.Close(r.PathValue("id")); err != nil {
		writeTutorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	step, err := s.tutor.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTutorError(w, err)
		return
	}
	concepts, err := s.tutor.Concepts()
	if err != nil {
		writeTutorError(w, err)
		return
	}
	resp := s.stepResponse(step)
	resp.Concepts = concepts
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	step, err := s.tutor.Answer(r.Context(), r.PathValue("id"),
		req.QuestionID.String(), req.UserAnswer.String(), req.responseTime())
	if err != nil {
		writeTutorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stepResponse(step))
}

func (s *Server) handleNextConcept(w http.ResponseWriter, r *http.Request) {
	step, err := s.tutor.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTutorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stepResponse(step))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeError(w, http.StatusNotImplemented, "reports are not available")
		return
	}
	st, _, err := s.tutor.Snapshot(r.PathValue("id"))
	if err != nil {
		writeTutorError(w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
	if err := report.WriteHistory(w, st, s.opts.Catalog); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

// decodeBody reads a JSON body. With allowEmpty, an empty body leaves v as is.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeTutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tutor.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "tutor failed to initialize")
	case errors.Is(err, tutor.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		slog.Error("tutor request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
