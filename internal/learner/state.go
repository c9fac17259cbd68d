// Package learner holds a learner's interaction history and latest mastery
// snapshot, plus the stores that persist them.
package learner

import (
	"time"
)

// Interaction is one graded answer. Interactions are only ever appended.
type Interaction struct {
	QuestionID     string    `json:"question_id"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// State is a learner's history and the mastery snapshot computed from it.
type State struct {
	ID      string             `json:"id"`
	History []Interaction      `json:"history"`
	Mastery map[string]float64 `json:"mastery"`
}

// NewState returns an empty state for a learner.
func NewState(id string) *State {
	return &State{
		ID:      id,
		History: []Interaction{},
		Mastery: map[string]float64{},
	}
}

// Append records an interaction at the end of the history.
func (s *State) Append(in Interaction) {
	s.History = append(s.History, in)
}

// SetMastery replaces the mastery snapshot.
func (s *State) SetMastery(m map[string]float64) {
	snap := make(map[string]float64, len(m))
	for k, v := range m {
		snap[k] = v
	}
	s.Mastery = snap
}

// HistorySnapshot returns a copy of the history that later appends cannot
// change.
func (s *State) HistorySnapshot() []Interaction {
	out := make([]Interaction, len(s.History))
	copy(out, s.History)
	return out
}

// SeenQuestions returns the set of question IDs answered in history. A
// question stays seen for the rest of the session whatever the outcome.
func SeenQuestions(history []Interaction) map[string]bool {
	seen := make(map[string]bool, len(history))
	for _, in := range history {
		seen[in.QuestionID] = true
	}
	return seen
}
