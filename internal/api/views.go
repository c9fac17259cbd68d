package api

import (
	"errors"
	"log/slog"
	"math"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/policy"
	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

// actionView is the wire form of an action: {"type": ..., "content": ...}.
type actionView struct {
	Type    policy.Kind `json:"type"`
	Content any         `json:"content"`
}

// stepResponse is returned by every endpoint that moves the loop forward.
// CurrentConceptID is null once all concepts are mastered.
type stepResponse struct {
	SessionID        string            `json:"session_id,omitempty"`
	Action           actionView        `json:"action"`
	Concepts         []content.Concept `json:"concepts,omitempty"`
	CurrentConceptID *string           `json:"current_concept_id"`
}

func (s *Server) stepResponse(step tutor.Step) stepResponse {
	return stepResponse{
		Action:           s.actionView(step.Action),
		CurrentConceptID: optional(step.ConceptID),
	}
}

func (s *Server) actionView(a policy.Action) actionView {
	if a.Kind == policy.KindQuestion && a.Question != nil {
		return actionView{Type: a.Kind, Content: s.questionView(*a.Question)}
	}
	return actionView{Type: a.Kind, Content: a.Payload()}
}

// questionView is the full question record. The answer is left out unless
// answers are exposed.
func (s *Server) questionView(q content.Question) any {
	rec, err := q.Record()
	if err != nil {
		slog.Error("failed to encode question", "question_id", q.ID.String(), "error", err)
		return map[string]string{"id": q.ID.String(), "concept_id": q.ConceptID}
	}
	if !s.opts.ExposeAnswers {
		delete(rec, "answer")
	}
	return rec
}

// answerRequest uses pointers so a missing field can be told apart from a
// zero value.
type answerRequest struct {
	Type           string        `json:"type,omitempty"`
	QuestionID     *content.Text `json:"question_id"`
	UserAnswer     *content.Text `json:"user_answer"`
	ResponseTimeMs *float64      `json:"response_time_ms"`
}

var errMissingAnswerFields = errors.New("missing 'question_id', 'user_answer', or 'response_time_ms'")

func (r answerRequest) validate() error {
	if r.QuestionID == nil || r.UserAnswer == nil || r.ResponseTimeMs == nil {
		return errMissingAnswerFields
	}
	if *r.ResponseTimeMs < 0 || math.IsNaN(*r.ResponseTimeMs) {
		return errors.New("response_time_ms must not be negative")
	}
	return nil
}

func (r answerRequest) responseTime() int64 {
	return int64(math.Round(*r.ResponseTimeMs))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
