// Package game runs timed quiz sessions: one ordered pass through a subject's
// questions, scored per answer and archived to history when completed.
package game

import (
	"slices"
	"time"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

// State is the lifecycle position of a session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Session is one attempt at a sequence of questions.
//
// len(Answers) == len(TimeSpent) == CurrentQuestionIndex <= len(Questions)
// holds after every transition.
type Session struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	SubjectID            string             `json:"subject_id"`
	Questions            []catalog.Question `json:"questions"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	Answers              []catalog.Answer   `json:"answers"`
	Score                int                `json:"score"`
	StartTime            time.Time          `json:"start_time"`
	EndTime              *time.Time         `json:"end_time,omitempty"`
	IsCompleted          bool               `json:"is_completed"`
	TimeSpent            []float64          `json:"time_spent"` // seconds per answered question
	HintsUsed            int                `json:"hints_used"`
	QuestionHints        int                `json:"question_hints,omitempty"` // hints used on the current question
	PendingReview        []int              `json:"pending_review,omitempty"` // indexes of answers awaiting manual grading
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateNotStarted
	case s.IsCompleted:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// CurrentQuestion returns the next question to answer.
func (s *Session) CurrentQuestion() (catalog.Question, bool) {
	if s.CurrentQuestionIndex >= len(s.Questions) {
		return catalog.Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// Remaining returns how many questions are still unanswered.
func (s *Session) Remaining() int {
	return len(s.Questions) - s.CurrentQuestionIndex
}

// Duration is the wall time between start and completion.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// clone returns a deep copy so callers never share slices with the manager.
func (s *Session) clone() Session {
	c := *s
	c.Questions = slices.Clone(s.Questions)
	c.Answers = slices.Clone(s.Answers)
	c.TimeSpent = slices.Clone(s.TimeSpent)
	c.PendingReview = slices.Clone(s.PendingReview)
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return c
}

// AnswerResult describes the outcome of one answer.
type AnswerResult struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	PendingReview bool   `json:"pending_review"`
	Points        int    `json:"points"`
	Score         int    `json:"score"`
	Remaining     int    `json:"remaining"`
}
