package game

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/scoring"
)

// Config holds dependencies for the session manager.
type Config struct {
	SessionTTL time.Duration    // abandon in-progress sessions older than this; 0 never expires
	Now        func() time.Time // defaults to time.Now
	NewID      func() string    // defaults to uuid.NewString
}

// Manager owns each player's current session and the completed history.
// It performs no I/O; callers persist History after Complete.
type Manager struct {
	current map[string]*Session // by user ID
	history []Session
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
	mu      sync.RWMutex
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Manager{
		current: make(map[string]*Session),
		ttl:     cfg.SessionTTL,
		now:     now,
		newID:   newID,
	}
}

// Start begins a new session for userID, replacing any current one.
func (m *Manager) Start(userID, subjectID string, questions []catalog.Question) (Session, error) {
	if len(questions) == 0 {
		return Session{}, fmt.Errorf("start %s: %w", subjectID, ErrNoQuestions)
	}

	s := &Session{
		ID:        m.newID(),
		UserID:    userID,
		SubjectID: subjectID,
		Questions: slices.Clone(questions),
		Answers:   []catalog.Answer{},
		TimeSpent: []float64{},
		StartTime: m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.current[userID]; ok && prev.State() == StateInProgress {
		slog.Info("abandoning unfinished session",
			"session_id", prev.ID,
			"user_id", userID,
			"answered", prev.CurrentQuestionIndex,
		)
	}
	m.current[userID] = s

	slog.Info("game started",
		"session_id", s.ID,
		"user_id", userID,
		"subject_id", subjectID,
		"questions", len(questions),
	)
	return s.clone(), nil
}

// Answer records an answer with the seconds spent on the current question.
// Essay answers are recorded for manual review and earn no points.
func (m *Manager) Answer(userID string, answer catalog.Answer, timeSpent float64) (AnswerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.activeLocked(userID)
	if err != nil {
		return AnswerResult{}, err
	}

	q, ok := s.CurrentQuestion()
	if !ok {
		return AnswerResult{}, ErrSessionExhausted
	}

	result := AnswerResult{QuestionID: q.ID}
	correct, err := scoring.Evaluate(q, answer)
	switch {
	case errors.Is(err, scoring.ErrManualGrading):
		result.PendingReview = true
		s.PendingReview = append(s.PendingReview, s.CurrentQuestionIndex)
	case err != nil:
		return AnswerResult{}, fmt.Errorf("question %s: %w", q.ID, err)
	default:
		result.Correct = correct
		result.Points = scoring.Points(q, correct, timeSpent)
	}

	s.Answers = append(s.Answers, answer)
	s.TimeSpent = append(s.TimeSpent, timeSpent)
	s.Score += result.Points
	s.CurrentQuestionIndex++
	s.QuestionHints = 0

	result.Score = s.Score
	result.Remaining = s.Remaining()
	return result, nil
}

// UseHint counts a hint against the current session. Hints do not affect score.
func (m *Manager) UseHint(userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.activeLocked(userID)
	if err != nil {
		return Session{}, err
	}
	s.HintsUsed++
	s.QuestionHints++
	return s.clone(), nil
}

// Complete finalizes the current session and appends it to history.
// A session can be completed once.
func (m *Manager) Complete(userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.activeLocked(userID)
	if err != nil {
		return Session{}, err
	}

	end := m.now()
	s.EndTime = &end
	s.IsCompleted = true
	snapshot := s.clone()
	m.history = append(m.history, snapshot)

	slog.Info("game completed",
		"session_id", s.ID,
		"user_id", userID,
		"score", s.Score,
		"answered", s.CurrentQuestionIndex,
		"questions", len(s.Questions),
	)
	return snapshot.clone(), nil
}

// Reset drops the current session. History is not affected.
func (m *Manager) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.current, userID)
}

// Current returns a copy of the player's current session.
func (m *Manager) Current(userID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.current[userID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// History returns all completed sessions in completion order.
func (m *Manager) History() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, len(m.history))
	for i := range m.history {
		out[i] = m.history[i].clone()
	}
	return out
}

// HistoryFor returns the completed sessions of one player.
func (m *Manager) HistoryFor(userID string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for i := range m.history {
		if m.history[i].UserID == userID {
			out = append(out, m.history[i].clone())
		}
	}
	return out
}

// RestoreHistory replaces history with previously persisted sessions.
// Sessions that are not completed or break the answer invariant are dropped.
func (m *Manager) RestoreHistory(sessions []Session) int {
	restored := make([]Session, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if !s.IsCompleted || !consistent(s) {
			slog.Warn("dropping inconsistent history entry", "session_id", s.ID)
			continue
		}
		restored = append(restored, s.clone())
	}

	m.mu.Lock()
	m.history = restored
	m.mu.Unlock()
	return len(restored)
}

// ExpireStale removes in-progress sessions older than the TTL and returns them.
func (m *Manager) ExpireStale() []Session {
	if m.ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Session
	for userID, s := range m.current {
		if m.expiredLocked(s) {
			expired = append(expired, s.clone())
			delete(m.current, userID)
		}
	}
	if len(expired) > 0 {
		slog.Info("expired abandoned sessions", "count", len(expired))
	}
	return expired
}

// activeLocked returns the player's in-progress session. Caller holds m.mu.
func (m *Manager) activeLocked(userID string) (*Session, error) {
	s, ok := m.current[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if s.IsCompleted {
		return nil, ErrAlreadyCompleted
	}
	if m.expiredLocked(s) {
		delete(m.current, userID)
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (m *Manager) expiredLocked(s *Session) bool {
	return m.ttl > 0 && !s.IsCompleted && m.now().Sub(s.StartTime) > m.ttl
}

func consistent(s *Session) bool {
	return len(s.Answers) == s.CurrentQuestionIndex &&
		len(s.TimeSpent) == s.CurrentQuestionIndex &&
		s.CurrentQuestionIndex <= len(s.Questions) &&
		s.Score >= 0 && s.HintsUsed >= 0
}
