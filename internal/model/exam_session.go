package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession represents one student's timed attempt at an exam.
// There is at most one row per (student, exam); a new attempt reactivates it.
type ExamSession struct {
	ID             uuid.UUID  `json:"id"`
	ExamID         uuid.UUID  `json:"exam_id"`
	StudentID      int        `json:"student_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastActive     *time.Time `json:"last_active,omitempty"`
	LastClientTime *time.Time `json:"last_client_time,omitempty"`
}

// OwnedBy reports whether the principal is the student who owns the session.
func (s *ExamSession) OwnedBy(p Principal) bool {
	return p.Kind == PrincipalStudent && p.ID == s.StudentID
}

// AccessExamRequest is the payload for requesting access to an exam.
type AccessExamRequest struct {
	Password string `json:"password" binding:"required,max=64"`
}

// SessionDescriptor is returned by the access gate.
type SessionDescriptor struct {
	SessionID       uuid.UUID   `json:"session_id"`
	StartedAt       time.Time   `json:"started_at"`
	ElapsedSeconds  int64       `json:"elapsed_seconds"`
	DurationSeconds int64       `json:"duration_seconds"`
	Exam            ExamSummary `json:"exam"`
	AttemptsTaken   int         `json:"attempts_taken"`
	Resumed         bool        `json:"resumed"`
}

// TimeStatus is the server-authoritative view of a session's remaining time.
type TimeStatus struct {
	RemainingSeconds int64     `json:"remaining_seconds"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	ShouldAutoSubmit bool      `json:"should_auto_submit"`
	Deadline         time.Time `json:"deadline"`
	ServerTime       time.Time `json:"server_time"`
}

// HeartbeatRequest is the payload of a heartbeat. ClientTime is diagnostic only.
type HeartbeatRequest struct {
	ClientTime *time.Time `json:"client_time" binding:"omitempty"`
}

// Heartbeat is a recorded liveness ping for a session.
type Heartbeat struct {
	SessionID  uuid.UUID  `json:"session_id"`
	ServerTime time.Time  `json:"server_time"`
	ClientTime *time.Time `json:"client_time,omitempty"`
}
