// Package tutor runs the adaptive tutoring loop: it walks a learner through the
// concepts in taught order, asks the policy what to offer next, grades answers
// and keeps the mastery estimate current.
package tutor

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/mastery"
	"github.com/p-n-ai/pai-tutor/internal/policy"
)

// Content is the catalog view the controller needs.
type Content interface {
	Concepts() []content.Concept
	Question(id string) (content.Question, bool)
}

// Step is the controller's answer to "what happens next": an action and the
// concept it belongs to. ConceptID is empty once every concept is complete.
type Step struct {
	Action    policy.Action
	ConceptID string
}

// ControllerConfig holds dependencies for a controller.
type ControllerConfig struct {
	SessionID    string
	Content      Content
	Policy       policy.Policy
	Estimator    mastery.Estimator
	Learner      *learner.State
	Store        learner.Store // optional write-through persistence
	Events       EventLogger   // optional
	PseudonymKey []byte
	Now          func() time.Time
}

// Controller owns one learner session: the concept cursor and the learner
// state. It is not safe for concurrent use; the Registry serializes access.
type Controller struct {
	sessionID string
	content   Content
	concepts  []content.Concept
	policy    policy.Policy
	estimator mastery.Estimator
	learner   *learner.State
	store     learner.Store
	events    EventLogger
	now       func() time.Time
	log       *slog.Logger

	// index is the position of the current concept; len(concepts) means done.
	index int
}

// NewController creates a session controller positioned at the first concept.
func NewController(cfg ControllerConfig) *Controller {
	st := cfg.Learner
	if st == nil {
		st = learner.NewState("")
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		sessionID: cfg.SessionID,
		content:   cfg.Content,
		concepts:  cfg.Content.Concepts(),
		policy:    cfg.Policy,
		estimator: cfg.Estimator,
		learner:   st,
		store:     cfg.Store,
		events:    events,
		now:       now,
		log: slog.With(
			"session_id", cfg.SessionID,
			"learner", learner.Pseudonym(cfg.PseudonymKey, st.ID),
		),
	}
}

// StartSession resets the cursor to the first concept and returns its first action.
// The learner's history is kept, so questions answered earlier stay excluded.
func (c *Controller) StartSession(ctx context.Context) Step {
	c.index = 0
	c.log.InfoContext(ctx, "session started", "concepts", len(c.concepts))
	c.logEvent(EventSessionStarted, map[string]any{"concepts": len(c.concepts)})
	return c.NextAction(ctx)
}

// NextAction returns the next action for the learner, moving past every
// concept the policy reports as complete. It visits each remaining concept at
// most once.
func (c *Controller) NextAction(ctx context.Context) Step {
	for c.index < len(c.concepts) {
		step, done := c.current(ctx)
		if !done {
			return step
		}
		if step.ConceptID != "" {
			c.log.InfoContext(ctx, "concept complete", "concept_id", step.ConceptID)
			c.logEvent(EventConceptCompleted, map[string]any{"concept_id": step.ConceptID})
		}
		c.index++
		c.log.InfoContext(ctx, "moving to next concept", "index", c.index)
	}

	c.log.InfoContext(ctx, "all concepts completed")
	return Step{Action: policy.Mastered()}
}

// SubmitAnswer grades an answer, records it, refreshes the mastery estimate
// and returns the next action. An unknown question is not graded.
func (c *Controller) SubmitAnswer(ctx context.Context, questionID, userAnswer string, responseTimeMs int64) Step {
	q, ok := c.content.Question(questionID)
	if !ok {
		c.log.WarnContext(ctx, "question not found, skipping grading", "question_id", questionID)
		c.logEvent(EventQuestionNotFound, map[string]any{"question_id": questionID})
		return c.NextAction(ctx)
	}

	correct := Grade(userAnswer, q.Answer.String())
	in := learner.Interaction{
		QuestionID:     questionID,
		IsCorrect:      correct,
		ResponseTimeMs: responseTimeMs,
		Timestamp:      c.now(),
	}
	c.learner.Append(in)

	estimate := c.estimator.Estimate(c.learner.HistorySnapshot())
	c.learner.SetMastery(estimate)
	c.persist(ctx, in, estimate)

	c.log.InfoContext(ctx, "answer graded",
		"question_id", questionID,
		"concept_id", q.ConceptID,
		"correct", correct,
		"response_time_ms", responseTimeMs,
		"history_len", len(c.learner.History),
	)
	c.logEvent(EventAnswerGraded, map[string]any{
		"question_id":      questionID,
		"concept_id":       q.ConceptID,
		"is_correct":       correct,
		"response_time_ms": responseTimeMs,
	})

	return c.NextAction(ctx)
}

// ForceAdvance moves to the next concept without asking the policy about the
// current one, and returns the new concept's first action. An end_concept
// result for the new concept is returned as is rather than skipped, and the
// concept is reported complete only once NextAction moves past it.
func (c *Controller) ForceAdvance(ctx context.Context) Step {
	from := c.index
	if c.index < len(c.concepts) {
		c.index++
	}
	c.log.InfoContext(ctx, "concept advanced on request", "from", from, "to", c.index)
	c.logEvent(EventConceptForced, map[string]any{"from_index": from, "to_index": c.index})

	if c.index >= len(c.concepts) {
		return Step{Action: policy.Mastered()}
	}
	if c.concepts[c.index].ID == "" {
		return c.NextAction(ctx)
	}
	step, _ := c.current(ctx)
	return step
}

// Concepts returns the concepts in taught order.
func (c *Controller) Concepts() []content.Concept {
	out := make([]content.Concept, len(c.concepts))
	copy(out, c.concepts)
	return out
}

// Index returns the cursor position.
func (c *Controller) Index() int {
	return c.index
}

// CurrentConceptID returns the concept the cursor is on, or "" when done.
func (c *Controller) CurrentConceptID() string {
	if c.index < len(c.concepts) {
		return c.concepts[c.index].ID
	}
	return ""
}

// Learner returns a copy of the learner state.
func (c *Controller) Learner() learner.State {
	st := learner.State{
		ID:      c.learner.ID,
		History: c.learner.HistorySnapshot(),
	}
	st.Mastery = make(map[string]float64, len(c.learner.Mastery))
	for k, v := range c.learner.Mastery {
		st.Mastery[k] = v
	}
	return st
}

// current asks the policy about the concept under the cursor. done reports
// that the concept has nothing left to offer (or no usable ID) and the cursor
// should move on.
func (c *Controller) current(ctx context.Context) (step Step, done bool) {
	concept := c.concepts[c.index]
	if concept.ID == "" {
		c.log.WarnContext(ctx, "concept has no id, skipping", "index", c.index)
		c.logEvent(EventConceptSkipped, map[string]any{"index": c.index})
		return Step{}, true
	}

	action := c.policy.Select(c.learner.Mastery, c.learner.HistorySnapshot(), concept.ID)
	step = Step{Action: action, ConceptID: concept.ID}
	return step, action.Kind == policy.KindEndConcept
}

func (c *Controller) persist(ctx context.Context, in learner.Interaction, estimate mastery.Estimate) {
	if c.store == nil {
		return
	}
	if err := c.store.AppendInteraction(ctx, c.learner.ID, in); err != nil {
		c.log.ErrorContext(ctx, "failed to store interaction", "error", err)
	}
	if err := c.store.SetMastery(ctx, c.learner.ID, estimate); err != nil {
		c.log.ErrorContext(ctx, "failed to store mastery", "error", err)
	}
}

func (c *Controller) logEvent(eventType string, data map[string]any) {
	if err := c.events.LogEvent(Event{
		SessionID: c.sessionID,
		LearnerID: c.learner.ID,
		EventType: eventType,
		Data:      data,
		CreatedAt: c.now(),
	}); err != nil {
		c.log.Warn("failed to log event", "type", eventType, "error", err)
	}
}
