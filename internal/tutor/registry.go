package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/mastery"
	"github.com/p-n-ai/pai-tutor/internal/policy"
)

const (
	defaultSessionTTL  = time.Hour
	defaultMaxSessions = 1000
	minSweepInterval   = time.Minute
)

// RegistryConfig holds the shared collaborators every session is built from.
type RegistryConfig struct {
	Content      Content
	Policy       policy.Policy
	Estimator    mastery.Estimator
	Store        learner.Store
	Events       EventLogger
	SessionTTL   time.Duration // idle time before a session is evicted (default 1h)
	MaxSessions  int           // live sessions before the least recently used is evicted (default 1000)
	PseudonymKey []byte
	Now          func() time.Time
}

type session struct {
	mu        sync.Mutex
	ctrl      *Controller
	learnerID string
	lastUsed  time.Time // guarded by Registry.mu
}

// Registry holds one Controller per session. Calls for the same session are
// serialized; different sessions share nothing mutable except the store.
//
// Every method on a nil *Registry returns ErrNotInitialized, so a surface whose
// tutor failed to start can keep serving and reject requests cleanly.
type Registry struct {
	cfg      RegistryConfig
	sessions map[string]*session
	mu       sync.Mutex
}

// NewRegistry validates the collaborators and creates an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Content == nil {
		return nil, fmt.Errorf("content is required")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if cfg.Estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if cfg.Store == nil {
		cfg.Store = learner.NewMemoryStore()
	}
	if cfg.Events == nil {
		cfg.Events = NopEventLogger{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}, nil
}

// Create starts a new session for a learner and returns its ID and first
// action. An empty learnerID gets a generated anonymous ID.
func (r *Registry) Create(ctx context.Context, learnerID string) (string, Step, error) {
	if r == nil {
		return "", Step{}, ErrNotInitialized
	}
	if learnerID == "" {
		learnerID = "anon-" + uuid.NewString()
	}

	st, err := r.cfg.Store.Load(ctx, learnerID)
	if err != nil {
		return "", Step{}, fmt.Errorf("loading learner: %w", err)
	}

	id := uuid.NewString()
	ctrl := NewController(ControllerConfig{
		SessionID:    id,
		Content:      r.cfg.Content,
		Policy:       r.cfg.Policy,
		Estimator:    r.cfg.Estimator,
		Learner:      st,
		Store:        r.cfg.Store,
		Events:       r.cfg.Events,
		PseudonymKey: r.cfg.PseudonymKey,
		Now:          r.cfg.Now,
	})
	if len(st.Mastery) == 0 {
		st.SetMastery(r.cfg.Estimator.Estimate(st.HistorySnapshot()))
	}

	s := &session{ctrl: ctrl, learnerID: learnerID}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.mu.Lock()
	if len(r.sessions) >= r.cfg.MaxSessions {
		r.evictOldestLocked()
	}
	s.lastUsed = r.cfg.Now()
	r.sessions[id] = s
	r.mu.Unlock()

	return id, ctrl.StartSession(ctx), nil
}

// Start restarts a session from the first concept.
func (r *Registry) Start(ctx context.Context, sessionID string) (Step, error) {
	var step Step
	err := r.with(sessionID, func(c *Controller) {
		step = c.StartSession(ctx)
	})
	return step, err
}

// Answer grades an answer in a session and returns the next action.
func (r *Registry) Answer(ctx context.Context, sessionID, questionID, userAnswer string, responseTimeMs int64) (Step, error) {
	var step Step
	err := r.with(sessionID, func(c *Controller) {
		step = c.SubmitAnswer(ctx, questionID, userAnswer, responseTimeMs)
	})
	return step, err
}

// Advance skips the session's current concept.
func (r *Registry) Advance(ctx context.Context, sessionID string) (Step, error) {
	var step Step
	err := r.with(sessionID, func(c *Controller) {
		step = c.ForceAdvance(ctx)
	})
	return step, err
}

// Snapshot returns a copy of the session's learner state and current concept.
func (r *Registry) Snapshot(sessionID string) (learner.State, string, error) {
	var (
		st      learner.State
		concept string
	)
	err := r.with(sessionID, func(c *Controller) {
		st = c.Learner()
		concept = c.CurrentConceptID()
	})
	return st, concept, err
}

// Concepts returns the concepts in taught order.
func (r *Registry) Concepts() ([]content.Concept, error) {
	if r == nil {
		return nil, ErrNotInitialized
	}
	return r.cfg.Content.Concepts(), nil
}

// Close ends a session.
func (r *Registry) Close(sessionID string) error {
	if r == nil {
		return ErrNotInitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the session TTL and returns how
// many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastUsed) > r.cfg.SessionTTL {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("idle sessions evicted", "evicted", evicted, "remaining", len(r.sessions))
	}
	return evicted
}

// Run sweeps idle sessions periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r == nil {
		return
	}
	interval := r.cfg.SessionTTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.cfg.Now())
		}
	}
}

func (r *Registry) with(sessionID string, fn func(*Controller)) error {
	if r == nil {
		return ErrNotInitialized
	}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		s.lastUsed = r.cfg.Now()
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl)
	return nil
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, s := range r.sessions {
		if oldestID == "" || s.lastUsed.Before(oldest) {
			oldestID, oldest = id, s.lastUsed
		}
	}
	if oldestID != "" {
		delete(r.sessions, oldestID)
		slog.Info("session evicted to make room", "session_id", oldestID)
	}
}
