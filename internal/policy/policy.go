// Package policy decides the next learning action for a concept.
package policy

import (
	"log/slog"
	"math/rand/v2"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/mastery"
)

// Kind identifies what an Action offers the learner.
type Kind string

const (
	KindQuestion   Kind = "question"
	KindExample    Kind = "example"
	KindEndConcept Kind = "end_concept"
	KindMastery    Kind = "mastery"
)

// Messages carried by notice actions.
const (
	ConceptCompleteMessage = "Concept complete!"
	AllMasteredMessage     = "You have mastered all concepts!"
)

// Notice is the payload of end_concept and mastery actions.
type Notice struct {
	ConceptID string `json:"concept_id,omitempty"`
	Message   string `json:"message"`
}

// Action is the next unit of content offered to a learner. Exactly one of the
// payload fields is set, matching Kind.
type Action struct {
	Kind     Kind
	Question *content.Question
	Example  *content.Example
	Notice   *Notice
}

// Payload returns the payload matching the action's kind.
func (a Action) Payload() any {
	switch a.Kind {
	case KindQuestion:
		return a.Question
	case KindExample:
		return a.Example
	default:
		return a.Notice
	}
}

// EndConcept returns the action signalling a concept has nothing left to offer.
func EndConcept(conceptID string) Action {
	return Action{Kind: KindEndConcept, Notice: &Notice{ConceptID: conceptID, Message: ConceptCompleteMessage}}
}

// Mastered returns the terminal action once every concept is complete.
func Mastered() Action {
	return Action{Kind: KindMastery, Notice: &Notice{Message: AllMasteredMessage}}
}

// Policy selects the next action for a concept.
type Policy interface {
	Select(m mastery.Estimate, history []learner.Interaction, conceptID string) Action
}

// Content is the catalog view a policy needs.
type Content interface {
	QuestionsFor(conceptID string) []content.Question
	ExamplesFor(conceptID string) []content.Example
}

// Picker returns a uniformly random index in [0, n).
type Picker func(n int) int

// HardestFirst offers the hardest question of the concept the learner has not
// answered yet, then a random worked example, then ends the concept.
//
// It is greedy: difficulty is not matched to the mastery estimate, which it
// ignores entirely. Among equally difficult questions the one that comes first
// in the catalog wins.
type HardestFirst struct {
	content Content
	pick    Picker
}

// Option configures a HardestFirst policy.
type Option func(*HardestFirst)

// WithPicker replaces the random source used to choose examples.
func WithPicker(p Picker) Option {
	return func(h *HardestFirst) {
		h.pick = p
	}
}

// NewHardestFirst creates the hardest-question-first policy.
func NewHardestFirst(c Content, opts ...Option) *HardestFirst {
	h := &HardestFirst{
		content: c,
		pick:    rand.IntN,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HardestFirst) Select(_ mastery.Estimate, history []learner.Interaction, conceptID string) Action {
	if q, ok := h.hardestUnseen(history, conceptID); ok {
		return Action{Kind: KindQuestion, Question: &q}
	}

	if ex, ok := h.pickExample(conceptID); ok {
		return Action{Kind: KindExample, Example: &ex}
	}

	slog.Debug("no questions or examples left", "concept_id", conceptID)
	return EndConcept(conceptID)
}

func (h *HardestFirst) hardestUnseen(history []learner.Interaction, conceptID string) (content.Question, bool) {
	seen := learner.SeenQuestions(history)

	var best content.Question
	found := false
	for _, q := range h.content.QuestionsFor(conceptID) {
		if seen[q.ID.String()] {
			continue
		}
		// Strictly greater keeps the earliest question on ties.
		if !found || q.Difficulty > best.Difficulty {
			best = q
			found = true
		}
	}
	return best, found
}

func (h *HardestFirst) pickExample(conceptID string) (content.Example, bool) {
	examples := h.content.ExamplesFor(conceptID)
	if len(examples) == 0 {
		return content.Example{}, false
	}
	i := h.pick(len(examples))
	if i < 0 || i >= len(examples) {
		i = 0
	}
	return examples[i], true
}
