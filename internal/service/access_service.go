package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// AccessService admits students into exams and creates, reactivates or
// resumes their sessions.
type AccessService struct {
	exams    *ExamService
	sessions SessionStore
	results  ResultStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewAccessService creates a new AccessService.
func NewAccessService(exams *ExamService, sessions SessionStore, results ResultStore, log zerolog.Logger) *AccessService {
	return &AccessService{
		exams:    exams,
		sessions: sessions,
		results:  results,
		log:      log.With().Str("component", "access_service").Logger(),
		now:      time.Now,
	}
}

// RequestAccess validates a student's access to an exam. Every check runs
// before anything is written, so a rejected request leaves no trace.
func (s *AccessService) RequestAccess(ctx context.Context, examID uuid.UUID, p model.Principal, password string) (*model.SessionDescriptor, error) {
	if p.Kind != model.PrincipalStudent {
		return nil, ErrNotFound
	}

	exam, err := s.exams.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.results.CountAttempts(ctx, p.ID, examID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if attempts >= exam.MaxAttempts {
		return nil, ErrAttemptsExceeded
	}

	now := s.now()
	candidate, activated := model.ActivateIfDue(*exam, now)
	if candidate.State != model.ExamStateActive {
		return nil, ErrExamUnavailable
	}
	if candidate.WindowStart != nil && now.Before(*candidate.WindowStart) {
		return nil, ErrExamUnavailable
	}
	if candidate.WindowEnd != nil && !now.Before(*candidate.WindowEnd) {
		return nil, ErrExamUnavailable
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(candidate.Password)) != 1 {
		return nil, ErrInvalidPassword
	}

	if activated {
		if err := s.exams.PersistActivation(ctx, &candidate); err != nil {
			return nil, err
		}
	}

	session, resumed, err := s.openSession(ctx, examID, p.ID, now)
	if err != nil {
		return nil, err
	}

	snap, err := s.exams.Snapshot(ctx, examID)
	if err != nil {
		return nil, err
	}

	status := ComputeRemaining(session, &candidate, now)

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("session_id", session.ID.String()).
		Int("student_id", p.ID).
		Bool("resumed", resumed).
		Msg("Exam access granted")

	return &model.SessionDescriptor{
		SessionID:       session.ID,
		StartedAt:       session.StartedAt,
		ElapsedSeconds:  status.ElapsedSeconds,
		DurationSeconds: int64(candidate.Duration() / time.Second),
		Exam: model.ExamSummary{
			ID:              candidate.ID,
			Title:           candidate.Title,
			DurationMinutes: candidate.DurationMinutes,
			WindowStart:     candidate.WindowStart,
			WindowEnd:       candidate.WindowEnd,
			MaxAttempts:     candidate.MaxAttempts,
			AttemptsTaken:   attempts,
			TotalQuestions:  len(snap.Questions),
		},
		AttemptsTaken: attempts,
		Resumed:       resumed,
	}, nil
}

// openSession creates the session row, reactivates a closed one, or resumes
// the active one. Concurrent callers converge on the single row.
func (s *AccessService) openSession(ctx context.Context, examID uuid.UUID, studentID int, now time.Time) (*model.ExamSession, bool, error) {
	existing, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	if existing == nil {
		created, isNew, err := s.sessions.Create(ctx, examID, studentID, now)
		if err != nil {
			return nil, false, fmt.Errorf("create session: %w", err)
		}
		if !isNew && !created.IsActive {
			return s.reactivate(ctx, created.ID, now)
		}
		return created, !isNew, nil
	}

	if existing.IsActive {
		return existing, true, nil
	}
	return s.reactivate(ctx, existing.ID, now)
}

func (s *AccessService) reactivate(ctx context.Context, id uuid.UUID, now time.Time) (*model.ExamSession, bool, error) {
	session, reactivated, err := s.sessions.Reactivate(ctx, id, now)
	if err != nil {
		return nil, false, fmt.Errorf("reactivate session: %w", err)
	}
	return session, !reactivated, nil
}
