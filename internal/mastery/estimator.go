// Package mastery estimates per-concept proficiency from a learner's history.
//
// An Estimator is a pure function of the full history: it keeps no state
// between calls and is re-run after every graded answer, so estimators can be
// swapped without changing the tutor.
package mastery

import (
	"fmt"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
)

// DefaultScore is reported for concepts with no evidence.
const DefaultScore = 0.5

// Estimate maps concept IDs to a proficiency score in [0,1].
type Estimate map[string]float64

// Estimator turns an interaction history into a mastery estimate covering
// every known concept.
type Estimator interface {
	Estimate(history []learner.Interaction) Estimate
}

// QuestionLookup resolves the concept a question belongs to.
type QuestionLookup interface {
	Question(id string) (content.Question, bool)
}

// Kinds of estimator selectable from configuration.
const (
	KindAccuracy = "accuracy"
	KindConcept  = "concept"
)

// New builds the estimator named by kind for the concepts of a catalog.
func New(kind string, catalog *content.Catalog) (Estimator, error) {
	switch kind {
	case "", KindAccuracy:
		return NewAccuracyEstimator(catalog.ConceptIDs()), nil
	case KindConcept:
		return NewConceptAccuracyEstimator(catalog.ConceptIDs(), catalog), nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", kind)
	}
}

// AccuracyEstimator is a placeholder model: it computes overall accuracy and
// reports it for every concept, ignoring which concept a question belongs to.
type AccuracyEstimator struct {
	concepts []string
}

// NewAccuracyEstimator creates a placeholder estimator for the given concepts.
func NewAccuracyEstimator(conceptIDs []string) *AccuracyEstimator {
	return &AccuracyEstimator{concepts: append([]string(nil), conceptIDs...)}
}

func (e *AccuracyEstimator) Estimate(history []learner.Interaction) Estimate {
	score := DefaultScore
	if len(history) > 0 {
		correct := 0
		for _, in := range history {
			if in.IsCorrect {
				correct++
			}
		}
		score = float64(correct) / float64(len(history))
	}

	est := make(Estimate, len(e.concepts))
	for _, id := range e.concepts {
		est[id] = clamp(score)
	}
	return est
}

// ConceptAccuracyEstimator scores each concept by the accuracy of the answers
// to that concept's questions. Concepts without answers get DefaultScore, and
// answers to questions the lookup does not know are ignored.
type ConceptAccuracyEstimator struct {
	concepts []string
	lookup   QuestionLookup
}

// NewConceptAccuracyEstimator creates a per-concept accuracy estimator.
func NewConceptAccuracyEstimator(conceptIDs []string, lookup QuestionLookup) *ConceptAccuracyEstimator {
	return &ConceptAccuracyEstimator{
		concepts: append([]string(nil), conceptIDs...),
		lookup:   lookup,
	}
}

func (e *ConceptAccuracyEstimator) Estimate(history []learner.Interaction) Estimate {
	type tally struct{ correct, total int }
	tallies := make(map[string]*tally)
	for _, in := range history {
		q, ok := e.lookup.Question(in.QuestionID)
		if !ok {
			continue
		}
		t := tallies[q.ConceptID]
		if t == nil {
			t = &tally{}
			tallies[q.ConceptID] = t
		}
		t.total++
		if in.IsCorrect {
			t.correct++
		}
	}

	est := make(Estimate, len(e.concepts))
	for _, id := range e.concepts {
		t := tallies[id]
		if t == nil || t.total == 0 {
			est[id] = DefaultScore
			continue
		}
		est[id] = clamp(float64(t.correct) / float64(t.total))
	}
	return est
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
