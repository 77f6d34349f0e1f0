package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidState is returned when an exam lifecycle transition's guard fails.
var ErrInvalidState = errors.New("invalid exam state transition")

// ExamState enumerates the lifecycle states of an exam.
type ExamState string

const (
	ExamStateDraft     ExamState = "DRAFT"
	ExamStateReady     ExamState = "READY"
	ExamStatePublished ExamState = "PUBLISHED"
	ExamStateActive    ExamState = "ACTIVE"
)

// Exam represents an exam entity. Authoring owns every field except the
// lifecycle state, which moves through the transitions below.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
	WindowEnd       *time.Time `json:"window_end,omitempty"`
	MaxAttempts     int        `json:"max_attempts"`
	Password        string     `json:"-"`
	PassingScore    *float64   `json:"passing_score,omitempty"`
	State           ExamState  `json:"state"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the per-session time budget.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// ActivateIfDue moves a PUBLISHED exam to ACTIVE. Any other state is returned
// unchanged. The bool reports whether a transition happened.
func ActivateIfDue(e Exam, now time.Time) (Exam, bool) {
	if e.State != ExamStatePublished {
		return e, false
	}
	at := now
	e.State = ExamStateActive
	e.ActivatedAt = &at
	return e, true
}

// MarkReady moves a DRAFT exam to READY. At least one question must be attached.
func MarkReady(e Exam, questionCount int) (Exam, error) {
	if e.State != ExamStateDraft || questionCount < 1 {
		return e, ErrInvalidState
	}
	e.State = ExamStateReady
	return e, nil
}

// Publish moves a READY exam to PUBLISHED once it has questions, a password and a duration.
func Publish(e Exam, questionCount int, now time.Time) (Exam, error) {
	if e.State != ExamStateReady {
		return e, ErrInvalidState
	}
	if questionCount < 1 || e.Password == "" || e.DurationMinutes <= 0 {
		return e, ErrInvalidState
	}
	at := now
	e.State = ExamStatePublished
	e.PublishedAt = &at
	return e, nil
}

// Activate is the explicit PUBLISHED → ACTIVE transition. Activating an ACTIVE
// exam is a no-op.
func Activate(e Exam, now time.Time) (Exam, bool, error) {
	switch e.State {
	case ExamStateActive:
		return e, false, nil
	case ExamStatePublished:
		activated, _ := ActivateIfDue(e, now)
		return activated, true, nil
	default:
		return e, false, ErrInvalidState
	}
}

// ExamSummary is the student-safe view of an exam returned on access.
type ExamSummary struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
	WindowEnd       *time.Time `json:"window_end,omitempty"`
	MaxAttempts     int        `json:"max_attempts"`
	AttemptsTaken   int        `json:"attempts_taken"`
	TotalQuestions  int        `json:"total_questions"`
}

// ExamSnapshot bundles an exam with its question set. It is what the session
// engine caches in Redis; correct answers never leave the server.
type ExamSnapshot struct {
	Exam      Exam           `json:"exam"`
	Questions []ExamQuestion `json:"questions"`
}

// QuestionIDs returns the question set as a lookup map.
func (s *ExamSnapshot) QuestionIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(s.Questions))
	for i := range s.Questions {
		ids[s.Questions[i].QuestionID] = struct{}{}
	}
	return ids
}
